package notify

import (
	"context"
	"sync"
	"time"

	server "github.com/charadev96/gochan/internal/server/domain"
)

const DefaultMailboxLimit = 64

// Mailbox queues notices per recipient until they are fetched. When a queue
// is full the oldest notice is dropped. The zero value holds up to
// DefaultMailboxLimit notices per recipient.
type Mailbox struct {
	limit int

	mu     sync.Mutex
	queues map[server.UserID][]server.Notice
}

func NewMailbox(limit int) *Mailbox {
	if limit <= 0 {
		limit = DefaultMailboxLimit
	}
	return &Mailbox{
		limit:  limit,
		queues: make(map[server.UserID][]server.Notice),
	}
}

func (m *Mailbox) Limit() int {
	if m.limit <= 0 {
		return DefaultMailboxLimit
	}
	return m.limit
}

func (m *Mailbox) Notify(ctx context.Context, n server.Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queues == nil {
		m.queues = make(map[server.UserID][]server.Notice)
	}
	q := append(m.queues[n.Recipient], n)
	if limit := m.Limit(); len(q) > limit {
		q = q[len(q)-limit:]
	}
	m.queues[n.Recipient] = q
}

// Drain returns and forgets every queued notice for user, oldest first.
func (m *Mailbox) Drain(user server.UserID) []server.Notice {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[user]
	delete(m.queues, user)
	return q
}

func (m *Mailbox) Pending(user server.UserID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[user])
}
