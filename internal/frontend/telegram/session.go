package telegram

import (
	"sync"

	"github.com/vadimtrunov/MovieSearch/internal/search"
)

// chatSession is the search session of one chat. mu guards s, which is not
// safe for concurrent use on its own.
type chatSession struct {
	mu sync.Mutex
	s  *search.Session
	// resultsMsgID is the message showing the current results page, 0 if none.
	resultsMsgID int
}

// SessionFactory creates the search session of a chat. notify is called
// when a search in that chat completes without results.
type SessionFactory func(notify search.Notifier) *search.Session

// sessionManager manages per-chat search sessions and access control.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*chatSession
	allowed  map[int64]bool // nil or empty = allow all
}

// newSessionManager creates a session manager.
// If allowedUserIDs is empty, all users are allowed.
func newSessionManager(allowedUserIDs []int64) *sessionManager {
	allowed := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	return &sessionManager{
		sessions: make(map[int64]*chatSession),
		allowed:  allowed,
	}
}

// isAllowed checks if a user is authorized to use the bot.
func (sm *sessionManager) isAllowed(userID int64) bool {
	if len(sm.allowed) == 0 {
		return true
	}
	return sm.allowed[userID]
}

// getOrCreate returns the chat's session, creating it with newSession on
// first use.
func (sm *sessionManager) getOrCreate(chatID int64, newSession func() *search.Session) *chatSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if cs, ok := sm.sessions[chatID]; ok {
		return cs
	}
	cs := &chatSession{s: newSession()}
	sm.sessions[chatID] = cs
	return cs
}

// reset clears a chat's session, forcing a new one on the next message.
func (sm *sessionManager) reset(chatID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, chatID)
}
