// Package lock provides per-conversation locking for game state mutations.
//
// Two independent lock domains exist for every conversation: the status
// domain guards phase and turn-owner transitions, the roster domain guards
// the joined-user list. A handler must never hold both at the same time.
package lock

import "sync"

// ChatLock provides lazily-created per-conversation mutexes.
// Different conversations never contend with each other, and the two
// domains of one conversation are independent.
type ChatLock struct {
	status sync.Map // map[int64]*sync.Mutex
	roster sync.Map // map[int64]*sync.Mutex
}

// NewChatLock creates a new ChatLock instance.
func NewChatLock() *ChatLock {
	return &ChatLock{}
}

func get(m *sync.Map, chatID int64) *sync.Mutex {
	if v, ok := m.Load(chatID); ok {
		return v.(*sync.Mutex)
	}
	v, _ := m.LoadOrStore(chatID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Status returns the status-domain mutex for a conversation,
// creating it on first request.
func (cl *ChatLock) Status(chatID int64) *sync.Mutex {
	return get(&cl.status, chatID)
}

// Roster returns the roster-domain mutex for a conversation,
// creating it on first request.
func (cl *ChatLock) Roster(chatID int64) *sync.Mutex {
	return get(&cl.roster, chatID)
}

// WithStatus executes fn while holding the conversation's status lock.
// Every phase check-and-set must go through here.
func (cl *ChatLock) WithStatus(chatID int64, fn func() error) error {
	mu := cl.Status(chatID)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// WithRoster executes fn while holding the conversation's roster lock.
func (cl *ChatLock) WithRoster(chatID int64, fn func() error) error {
	mu := cl.Roster(chatID)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}
