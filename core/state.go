package core

import (
	"encoding/json"
)

// ConversationState is the complete persisted state of one thread: the
// ordered message log, structured fields written by tools, and the number of
// model steps taken so far. Values are treated as immutable; mutation
// helpers return a modified copy and never touch the receiver.
type ConversationState struct {
	ThreadID  string
	Messages  []Message
	Fields    map[string]any
	StepCount int
}

// NewConversationState creates an empty state for a thread.
func NewConversationState(threadID string) ConversationState {
	return ConversationState{
		ThreadID: threadID,
		Fields:   map[string]any{},
	}
}

// Append returns a copy of the state with msgs added to the end of the log.
func (s ConversationState) Append(msgs ...Message) ConversationState {
	next := s.Clone()
	next.Messages = append(next.Messages, msgs...)
	return next
}

// WithFields returns a copy of the state with the delta merged into Fields.
// Later writes to the same key win.
func (s ConversationState) WithFields(delta map[string]any) ConversationState {
	if len(delta) == 0 {
		return s
	}
	next := s.Clone()
	for k, v := range delta {
		next.Fields[k] = v
	}
	return next
}

// WithStep returns a copy of the state with StepCount incremented.
func (s ConversationState) WithStep() ConversationState {
	next := s.Clone()
	next.StepCount++
	return next
}

// Field returns the value stored under key, if any.
func (s ConversationState) Field(key string) (any, bool) {
	v, ok := s.Fields[key]
	return v, ok
}

// LastMessage returns the most recent log entry.
func (s ConversationState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return nil, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Clone returns a deep enough copy for safe concurrent reads: the message
// slice and field map are copied, message values are immutable already.
func (s ConversationState) Clone() ConversationState {
	next := ConversationState{
		ThreadID:  s.ThreadID,
		StepCount: s.StepCount,
		Messages:  make([]Message, len(s.Messages), len(s.Messages)+1),
		Fields:    make(map[string]any, len(s.Fields)+1),
	}
	copy(next.Messages, s.Messages)
	for k, v := range s.Fields {
		next.Fields[k] = v
	}
	return next
}

type stateRecord struct {
	ThreadID  string          `json:"thread_id"`
	Messages  json.RawMessage `json:"messages"`
	Fields    map[string]any  `json:"fields,omitempty"`
	StepCount int             `json:"step_count"`
}

// MarshalJSON serializes the state, including the role-tagged message log.
func (s ConversationState) MarshalJSON() ([]byte, error) {
	msgs, err := EncodeMessages(s.Messages)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stateRecord{
		ThreadID:  s.ThreadID,
		Messages:  msgs,
		Fields:    s.Fields,
		StepCount: s.StepCount,
	})
}

// UnmarshalJSON restores a state serialized by MarshalJSON.
func (s *ConversationState) UnmarshalJSON(data []byte) error {
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	msgs := []Message{}
	if len(rec.Messages) > 0 {
		var err error
		msgs, err = DecodeMessages(rec.Messages)
		if err != nil {
			return err
		}
	}
	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	*s = ConversationState{
		ThreadID:  rec.ThreadID,
		Messages:  msgs,
		Fields:    fields,
		StepCount: rec.StepCount,
	}
	return nil
}
