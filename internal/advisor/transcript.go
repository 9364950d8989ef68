package advisor

import (
	"context"
	"sync"
	"time"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

const GreetingText = "NetSaver v9 initialized..."

type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the in-memory chat pane. It is not persisted.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

func NewTranscript() *Transcript {
	t := &Transcript{now: time.Now}
	t.messages = []Message{{Role: RoleSystem, Text: GreetingText, Timestamp: t.now()}}
	return t
}

func (t *Transcript) Append(role Role, text string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := Message{Role: role, Text: text, Timestamp: t.now()}
	t.messages = append(t.messages, m)
	return m
}

func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages...)
}

// Ask records query, waits for the advisor and records its reply. The reply
// is appended even if the caller stopped waiting.
func (t *Transcript) Ask(ctx context.Context, a Advisor, balance, goal int64, query string) Message {
	t.Append(RoleUser, query)
	reply := a.Advise(context.WithoutCancel(ctx), balance, goal, query)
	return t.Append(RoleModel, reply)
}
