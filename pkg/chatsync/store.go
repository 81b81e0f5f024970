package chatsync

import (
	"sort"
	"sync"
)

// MessageStore holds the canonical, chronologically ordered message list.
// All mutation goes through Merge so provisional copies and server copies
// reconcile in one place.
type MessageStore struct {
	mu        sync.RWMutex
	messages  []Message
	index     map[string]int
	listeners map[int]func()
	nextID    int
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		index:     make(map[string]int),
		listeners: make(map[int]func()),
	}
}

// Merge folds incoming messages into the canonical list. Matching by ID
// updates in place; a server copy whose ClientRef matches a provisional
// entry replaces that entry. The read flag only ever flips to true.
func (s *MessageStore) Merge(incoming ...Message) {
	if len(incoming) == 0 {
		return
	}

	s.mu.Lock()
	changed := false
	for _, msg := range incoming {
		if msg.ID == "" {
			continue
		}
		if s.mergeOneLocked(msg) {
			changed = true
		}
	}
	if changed {
		s.sortLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *MessageStore) mergeOneLocked(msg Message) bool {
	if pos, ok := s.index[msg.ID]; ok {
		existing := s.messages[pos]
		if existing.Read {
			msg.Read = true
		}
		if existing == msg {
			return false
		}
		s.messages[pos] = msg
		return true
	}

	// A confirmed copy referencing a provisional entry replaces it under
	// the server-assigned ID.
	if msg.ClientRef != "" && msg.ClientRef != msg.ID {
		if pos, ok := s.index[msg.ClientRef]; ok && s.messages[pos].Provisional() {
			if s.messages[pos].Read {
				msg.Read = true
			}
			delete(s.index, msg.ClientRef)
			s.messages[pos] = msg
			s.index[msg.ID] = pos
			return true
		}
	}

	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return true
}

// Remove drops a message by ID. Used when a queued message is purged.
func (s *MessageStore) Remove(id string) {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages[:pos], s.messages[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
	s.mu.Unlock()

	s.notify()
}

// Get returns a message by ID.
func (s *MessageStore) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[pos], true
}

// All returns a copy of the full chronological list.
func (s *MessageStore) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Conversation projects the messages exchanged between the current user and
// one counterpart, in chronological order. The projection never mutates the
// store.
func (s *MessageStore) Conversation(currentUserID, recipientID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, msg := range s.messages {
		if (msg.SenderID == currentUserID && msg.RecipientID == recipientID) ||
			(msg.SenderID == recipientID && msg.RecipientID == currentUserID) {
			out = append(out, msg)
		}
	}
	return out
}

// OnChange registers a listener invoked after every store mutation. The
// returned function unregisters it.
func (s *MessageStore) OnChange(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *MessageStore) sortLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
	for i, msg := range s.messages {
		s.index[msg.ID] = i
	}
}

func (s *MessageStore) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
