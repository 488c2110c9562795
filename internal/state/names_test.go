package state

import "testing"

func TestResolveNamePriorityOverrideWins(t *testing.T) {
	s := testStore()
	s.UpsertContacts([]Contact{{
		ID:     "1555@s.whatsapp.net",
		Name:   "Alice, Bob, Carol", // member-list-shaped, must be skipped
		Notify: "ali",
	}})
	s.SetOverride("1555@s.whatsapp.net", "Boss")

	if got := s.ResolveName("1555@s.whatsapp.net", "", ""); got != "Boss" {
		t.Errorf("ResolveName() = %q, want override %q", got, "Boss")
	}

	s.ClearOverride("1555@s.whatsapp.net")
	if got := s.ResolveName("1555@s.whatsapp.net", "", ""); got != "ali" {
		t.Errorf("ResolveName() after clear = %q, want notify %q", got, "ali")
	}
}

func TestResolveNameContactNameBeatsNotify(t *testing.T) {
	s := testStore()
	s.UpsertContacts([]Contact{{ID: "1555@s.whatsapp.net", Name: "Alice", Notify: "ali"}})

	if got := s.ResolveName("1555@s.whatsapp.net", "", ""); got != "Alice" {
		t.Errorf("ResolveName() = %q, want %q", got, "Alice")
	}
}

func TestResolveNameGroupSubjectAndFallback(t *testing.T) {
	s := testStore()

	if got := s.ResolveName("g1@g.us", "", "Family"); got != "Family" {
		t.Errorf("ResolveName() = %q, want subject %q", got, "Family")
	}
	if got := s.ResolveName("g1@g.us", "Holiday Plans", ""); got != "Holiday Plans" {
		t.Errorf("ResolveName() = %q, want hint %q", got, "Holiday Plans")
	}
	// Member-list-shaped subject and hint are both rejected.
	if got := s.ResolveName("g1@g.us", "Alice, Bob", "Carol; Dave"); got != "Group" {
		t.Errorf("ResolveName() = %q, want %q", got, "Group")
	}
	// A hint containing an identifier fragment is rejected for groups.
	if got := s.ResolveName("g1@g.us", "g1@g.us", ""); got != "Group" {
		t.Errorf("ResolveName() = %q, want %q for jid-shaped hint", got, "Group")
	}
}

func TestResolveNameIndividualHintMustContainLetters(t *testing.T) {
	s := testStore()

	if got := s.ResolveName("1555@s.whatsapp.net", "+1 (555) 000", ""); got != "1555" {
		t.Errorf("ResolveName() = %q, want local part for numeric hint", got)
	}
	if got := s.ResolveName("1555@s.whatsapp.net", "Alice", ""); got != "Alice" {
		t.Errorf("ResolveName() = %q, want hint %q", got, "Alice")
	}
}

func TestResolveNameLocalPartFallback(t *testing.T) {
	s := testStore()
	if got := s.ResolveName("1555@c.us", "", ""); got != "1555" {
		t.Errorf("ResolveName() = %q, want %q", got, "1555")
	}
}

func TestResolveNameNormalizesBeforeLookup(t *testing.T) {
	s := testStore()
	s.SetOverride("1555@c.us", "Alice")

	// Alias set via the legacy form must apply to the canonical one.
	if got := s.ResolveName("1555@s.whatsapp.net", "", ""); got != "Alice" {
		t.Errorf("ResolveName() = %q, want %q", got, "Alice")
	}
}

// Mirrors the metadata-race scenario: a history batch delivers three chats,
// one group with a comma-joined name, then contacts arrive with a notify for
// one individual.
func TestResolveNameHistoryThenContactsScenario(t *testing.T) {
	s := testStore()
	s.UpsertChat("1555@s.whatsapp.net", ChatDelta{})
	s.UpsertChat("1666@s.whatsapp.net", ChatDelta{})
	s.UpsertChat("g1@g.us", ChatDelta{Name: "Alice, Bob, Carol", IsGroup: true})
	s.UpsertContacts([]Contact{{ID: "1555@s.whatsapp.net", Notify: "ali"}})

	cases := []struct{ id, want string }{
		{"1555@s.whatsapp.net", "ali"},
		{"g1@g.us", "Group"},
		{"1666@s.whatsapp.net", "1666"},
	}
	for _, c := range cases {
		chat, _ := s.Chat(c.id)
		if got := s.DisplayName(chat); got != c.want {
			t.Errorf("DisplayName(%s) = %q, want %q", c.id, got, c.want)
		}
	}
}

func TestResolveNameAliasScenario(t *testing.T) {
	s := testStore()
	// "/alias 15551234 Alice" stores under the bare id; a later message
	// arrives from the full jid.
	s.SetOverride("15551234", "Alice")
	s.UpsertContacts([]Contact{{ID: "15551234@s.whatsapp.net", Notify: "someone"}})

	// The bare alias resolves for the bare form.
	if got := s.ResolveName("15551234", "", ""); got != "Alice" {
		t.Errorf("ResolveName(bare) = %q, want %q", got, "Alice")
	}
}

func TestHasLetter(t *testing.T) {
	if hasLetter("+55 (11) 9-8888") {
		t.Error("hasLetter(numeric) = true, want false")
	}
	if !hasLetter("Ana") {
		t.Error("hasLetter(name) = false, want true")
	}
}
