// Package jid canonicalizes WhatsApp identifiers so the same logical peer
// never splits into two store entries. Two wire forms refer to the same
// user: the legacy "@c.us" suffix and the current "@s.whatsapp.net" one,
// either optionally carrying a ":device" part before the server.
package jid

import "strings"

const (
	// LegacySuffix is the old per-device user server.
	LegacySuffix = "@c.us"
	// UserSuffix is the canonical user server.
	UserSuffix = "@s.whatsapp.net"
	// GroupSuffix marks group chat identifiers.
	GroupSuffix = "@g.us"
)

// Normalize maps an identifier to its canonical form. Legacy "@c.us" ids are
// rewritten to "@s.whatsapp.net" and any ":device" part is dropped; all other
// ids pass through unchanged. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(id string) string {
	if user, ok := strings.CutSuffix(id, LegacySuffix); ok {
		id = user + UserSuffix
	}
	if at := strings.LastIndexByte(id, '@'); at > 0 {
		if colon := strings.IndexByte(id[:at], ':'); colon >= 0 {
			id = id[:colon] + id[at:]
		}
	}
	return id
}

// IsGroup reports whether the identifier names a group chat. Derived purely
// from the suffix; transport updates never contradict it.
func IsGroup(id string) bool {
	return strings.HasSuffix(id, GroupSuffix)
}

// LocalPart returns the portion before the server separator, used as the
// last-resort display name.
func LocalPart(id string) string {
	if at := strings.IndexByte(id, '@'); at >= 0 {
		return id[:at]
	}
	return id
}
