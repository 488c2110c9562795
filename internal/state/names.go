package state

import (
	"strings"
	"unicode"

	"waview/internal/jid"
)

// groupFallback is shown for groups with no usable subject or name hint.
const groupFallback = "Group"

// ResolveName computes the best human-readable label for an identifier given
// current contact and override state. The priority order is deliberate and
// load-bearing: it is what keeps a numeric chat name that arrives before the
// real contact record from sticking as someone's display name.
//
//  1. Manual override.
//  2. Address-book name, unless member-list-shaped.
//  3. Individuals: self-reported push name.
//  4. Groups: subject hint, else a clean chat-name hint, else "Group".
//  5. Individuals: chat-name hint when it is not purely numeric/punctuation.
//  6. Local part of the normalized identifier.
//
// Pure read: no lookups are created and no state is mutated.
func (s *Store) ResolveName(id, chatNameHint, groupSubjectHint string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveNameLocked(id, chatNameHint, groupSubjectHint)
}

func (s *Store) resolveNameLocked(id, chatNameHint, groupSubjectHint string) string {
	id = jid.Normalize(id)

	if name, ok := s.overrides[id]; ok && name != "" {
		return name
	}

	contact := s.contacts[id]
	if contact.Name != "" && !looksLikeMemberList(contact.Name) {
		return contact.Name
	}

	if jid.IsGroup(id) {
		if groupSubjectHint != "" && !looksLikeMemberList(groupSubjectHint) {
			return groupSubjectHint
		}
		if chatNameHint != "" && !looksLikeMemberList(chatNameHint) && !strings.Contains(chatNameHint, "@") {
			return chatNameHint
		}
		return groupFallback
	}

	if contact.Notify != "" {
		return contact.Notify
	}
	if chatNameHint != "" && !looksLikeMemberList(chatNameHint) && hasLetter(chatNameHint) {
		return chatNameHint
	}
	return jid.LocalPart(id)
}

// DisplayName resolves the label for a chat using its own name and cached
// group subject as hints.
func (s *Store) DisplayName(c Chat) string {
	return s.ResolveName(c.ID, c.Name, subjectOf(&c))
}

func subjectOf(c *Chat) string {
	if c.GroupMeta == nil {
		return ""
	}
	return c.GroupMeta.Subject
}

// hasLetter reports whether the string contains at least one letter, i.e. it
// is not purely numeric/punctuation like a phone number masquerading as a
// name.
func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
