// Package state holds the authoritative in-memory view of chats, contacts,
// per-chat message windows, and manual name overrides. All merge operations
// are defensive: invalid or missing optional fields are "no information",
// never errors, and every mutation is one complete merge under the lock so
// concurrent callers cannot observe torn state.
package state

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"waview/internal/jid"
)

// Store owns the chat/contact/message/override collections. Callers hold
// references into it by identifier only and must tolerate lookups failing.
type Store struct {
	mu        sync.RWMutex
	chats     map[string]*Chat
	order     []string // chat ids, presentation order (most recent first)
	contacts  map[string]Contact
	windows   map[string][]Message
	overrides map[string]string

	now func() int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		chats:     make(map[string]*Chat),
		contacts:  make(map[string]Contact),
		windows:   make(map[string][]Message),
		overrides: make(map[string]string),
		now:       func() int64 { return time.Now().Unix() },
	}
}

// looksLikeMemberList reports whether a name value is a comma/semicolon
// joined participant dump mistakenly attributed to a single id. Such values
// are never written as names and never shown as one. This is a guard against
// a known upstream data-quality bug, not an exhaustive validator.
func looksLikeMemberList(name string) bool {
	return strings.ContainsAny(name, ",;")
}

// UpsertChat merges a partial update into the chat for id, creating it if
// absent. Group name updates are suppressed unless accompanied by group
// metadata or an explicit group flag, and member-list-shaped names are never
// written. A non-empty LastMessage promotes the chat to the front of the
// ordered view; any other update keeps ordering by timestamp descending,
// stable for ties.
func (s *Store) UpsertChat(id string, d ChatDelta) {
	id = jid.Normalize(id)
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[id]
	if !ok {
		c = &Chat{
			ID:        id,
			IsGroup:   jid.IsGroup(id),
			Timestamp: s.now(),
		}
		s.chats[id] = c
		s.order = append(s.order, id)
	}

	if d.Name != "" && !looksLikeMemberList(d.Name) {
		if !c.IsGroup || d.GroupMeta != nil || d.IsGroup {
			c.Name = d.Name
		}
	}
	if d.UnreadCount != nil {
		c.UnreadCount = *d.UnreadCount
	}
	if d.Presence != nil {
		c.Presence = *d.Presence
	}
	if d.GroupMeta != nil {
		c.GroupMeta = d.GroupMeta
	}
	if d.Timestamp > 0 {
		c.Timestamp = d.Timestamp
	}

	if d.LastMessage != "" {
		c.LastMessage = d.LastMessage
		s.moveToFrontLocked(id)
	} else {
		s.sortByTimestampLocked()
	}
}

// moveToFrontLocked relocates id to index 0 of the presentation order.
func (s *Store) moveToFrontLocked(id string) {
	for i, existing := range s.order {
		if existing == id {
			copy(s.order[1:i+1], s.order[:i])
			s.order[0] = id
			return
		}
	}
}

func (s *Store) sortByTimestampLocked() {
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.chats[s.order[i]].Timestamp > s.chats[s.order[j]].Timestamp
	})
}

// UpsertContacts merges contacts into the store. Each contact is written
// under both its original and its normalized id so lookups by either the
// legacy or the canonical form succeed. Empty fields never clobber known
// values.
func (s *Store) UpsertContacts(contacts []Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range contacts {
		if c.ID == "" {
			continue
		}
		s.mergeContactLocked(c.ID, c)
		if norm := jid.Normalize(c.ID); norm != c.ID {
			c.ID = norm
			s.mergeContactLocked(norm, c)
		}
	}
}

func (s *Store) mergeContactLocked(key string, c Contact) {
	existing := s.contacts[key]
	existing.ID = key
	if c.Name != "" {
		existing.Name = c.Name
	}
	if c.Notify != "" {
		existing.Notify = c.Notify
	}
	s.contacts[key] = existing
}

// Contact returns the contact stored under the normalized id.
func (s *Store) Contact(id string) (Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[jid.Normalize(id)]
	return c, ok
}

// AppendMessage appends a message to the chat's window, evicting the oldest
// entries beyond the retention cap. The chat is created minimally if it does
// not exist yet. Returns a copy of the updated window.
func (s *Store) AppendMessage(chatID string, m Message) []Message {
	chatID = jid.Normalize(chatID)
	if chatID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		s.chats[chatID] = &Chat{
			ID:        chatID,
			IsGroup:   jid.IsGroup(chatID),
			Timestamp: s.now(),
		}
		s.order = append(s.order, chatID)
	}

	w := append(s.windows[chatID], m)
	if over := len(w) - WindowSize; over > 0 {
		w = append(w[:0:0], w[over:]...)
	}
	s.windows[chatID] = w

	out := make([]Message, len(w))
	copy(out, w)
	return out
}

// Window returns a copy of the chat's message window, oldest first.
func (s *Store) Window(chatID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := s.windows[jid.Normalize(chatID)]
	out := make([]Message, len(w))
	copy(out, w)
	return out
}

// Chat returns a copy of the chat for id.
func (s *Store) Chat(id string) (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[jid.Normalize(id)]
	if !ok {
		return Chat{}, false
	}
	return *c, true
}

// Chats returns the ordered chat list, filtered by a case-insensitive
// substring match of query against each chat's resolved display name. An
// empty query matches all.
func (s *Store) Chats(query string) []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	out := make([]Chat, 0, len(s.order))
	for _, id := range s.order {
		c := s.chats[id]
		if query != "" {
			name := s.resolveNameLocked(c.ID, c.Name, subjectOf(c))
			if !strings.Contains(strings.ToLower(name), query) {
				continue
			}
		}
		out = append(out, *c)
	}
	return out
}

// SetPresence updates only the presence field of an existing chat. Unknown
// chat ids are ignored rather than implicitly created.
func (s *Store) SetPresence(id, presence string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[jid.Normalize(id)]; ok {
		c.Presence = presence
	}
}

// MarkRead zeroes the unread counter of an existing chat.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[jid.Normalize(id)]; ok {
		c.UnreadCount = 0
	}
}

// IncrementUnread bumps the unread counter of an existing chat.
func (s *Store) IncrementUnread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[jid.Normalize(id)]; ok {
		c.UnreadCount++
	}
}

// SetOverride records a manual alias for the normalized id. Overrides are
// the highest-priority name source and live independently of chat and
// message churn.
func (s *Store) SetOverride(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[jid.Normalize(id)] = name
}

// ClearOverride removes a manual alias.
func (s *Store) ClearOverride(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, jid.Normalize(id))
}

// Override returns the manual alias for the normalized id, if any.
func (s *Store) Override(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.overrides[jid.Normalize(id)]
	return name, ok
}

// document is the persisted shape of the main state record: a plain
// key-mapped document with no required field ordering, rewritten wholesale
// on each snapshot tick. Presentation order is rebuilt from timestamps on
// restore.
type document struct {
	Chats    map[string]*Chat     `json:"chats"`
	Contacts map[string]Contact   `json:"contacts"`
	Messages map[string][]Message `json:"messages"`
}

// Snapshot exports chats, contacts, and message windows as one JSON
// document.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(document{
		Chats:    s.chats,
		Contacts: s.contacts,
		Messages: s.windows,
	})
}

// Restore imports a Snapshot blob. A malformed or empty blob yields empty
// initial state rather than an error; losing history is an acceptable
// degradation, failing to start is not.
func (s *Store) Restore(blob []byte) {
	var doc document
	if len(blob) == 0 || json.Unmarshal(blob, &doc) != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = make(map[string]*Chat, len(doc.Chats))
	s.order = s.order[:0]
	for id, c := range doc.Chats {
		if c == nil || id == "" {
			continue
		}
		c.ID = id
		c.IsGroup = jid.IsGroup(id)
		s.chats[id] = c
		s.order = append(s.order, id)
	}
	s.sortByTimestampLocked()

	s.contacts = make(map[string]Contact, len(doc.Contacts))
	for id, c := range doc.Contacts {
		c.ID = id
		s.contacts[id] = c
	}

	s.windows = make(map[string][]Message, len(doc.Messages))
	for id, w := range doc.Messages {
		if over := len(w) - WindowSize; over > 0 {
			w = w[over:]
		}
		s.windows[id] = w
	}
}

// OverridesSnapshot exports the alias map as its own JSON document.
func (s *Store) OverridesSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.overrides)
}

// RestoreOverrides imports an OverridesSnapshot blob, tolerating malformed
// input the same way Restore does.
func (s *Store) RestoreOverrides(blob []byte) {
	var overrides map[string]string
	if len(blob) == 0 || json.Unmarshal(blob, &overrides) != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = overrides
}
