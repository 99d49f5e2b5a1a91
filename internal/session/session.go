// Package session holds per-conversation state. Each session is owned
// by one conversation loop at a time; all mutation goes through the
// session's own lock so concurrent callers addressing the same id are
// serialized rather than corrupting state.
package session

import (
	"encoding/json"
	"sync"
	"time"
)

// Message is one exchanged conversation message.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCallEntry is one row of the append-only tool-call audit log.
type ToolCallEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Tool      string    `json:"tool"`
	Args      any       `json:"args"`
	Result    any       `json:"result"`
}

// Session is the state of one conversation.
type Session struct {
	mu             sync.Mutex
	id             string
	createdAt      time.Time
	lastActive     time.Time
	lastResponseID string
	messages       []Message
	toolCalls      []ToolCallEntry
}

func newSession(id string, now time.Time) *Session {
	return &Session{id: id, createdAt: now, lastActive: now}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// AppendMessage appends a message to the conversation history.
func (s *Session) AppendMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.messages = append(s.messages, Message{Role: role, Content: content, Timestamp: now})
	s.lastActive = now
}

// Messages returns a copy of the message history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// RecordToolCall appends an audit entry.
func (s *Session) RecordToolCall(tool string, args, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.toolCalls = append(s.toolCalls, ToolCallEntry{Timestamp: now, Tool: tool, Args: args, Result: result})
	s.lastActive = now
}

// ToolCalls returns a copy of the audit log.
func (s *Session) ToolCalls() []ToolCallEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolCallEntry, len(s.toolCalls))
	copy(out, s.toolCalls)
	return out
}

// SetLastResponseID records the provider's continuation cursor.
func (s *Session) SetLastResponseID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		s.lastResponseID = id
	}
	s.lastActive = time.Now()
}

// LastResponseID returns the most recent continuation cursor.
func (s *Session) LastResponseID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResponseID
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}

type exportDoc struct {
	SessionID string          `json:"session_id"`
	CreatedAt time.Time       `json:"created_at"`
	Messages  []Message       `json:"messages"`
	ToolCalls []ToolCallEntry `json:"tool_calls"`
}

// Export serializes the session as an audit document.
func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	doc := exportDoc{
		SessionID: s.id,
		CreatedAt: s.createdAt,
		Messages:  append([]Message(nil), s.messages...),
		ToolCalls: append([]ToolCallEntry(nil), s.toolCalls...),
	}
	s.mu.Unlock()
	return json.MarshalIndent(doc, "", "  ")
}
