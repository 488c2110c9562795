package main

import (
	"flag"

	"go.uber.org/fx"

	"waview/internal/app"
)

func main() {
	flag.Parse()

	fx.New(
		app.Module(),
		fx.NopLogger,
	).Run()
}
