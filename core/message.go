package core

import (
	"encoding/json"
	"fmt"

	"github.com/threadloop/threadloop/internal/util"
)

// Role identifies the author of a message in the conversation log.
type Role string

const (
	// RoleSystem marks instructions that frame the whole conversation.
	RoleSystem Role = "system"
	// RoleUser marks input supplied by the human.
	RoleUser Role = "user"
	// RoleAssistant marks model output, including tool-call requests.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a single tool call.
	RoleTool Role = "tool"
)

// Message is the closed set of entries that can appear in a conversation log.
// The unexported marker method keeps the set closed: code switching over
// message variants can be exhaustive, and new variants cannot be added
// outside this package.
type Message interface {
	isMessage()

	// Role returns the author role of the message.
	Role() Role
	// MessageID returns the unique identifier of the message.
	MessageID() string
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// SystemMessage carries the system prompt.
type SystemMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (SystemMessage) isMessage() {}

// Role returns RoleSystem.
func (SystemMessage) Role() Role { return RoleSystem }

// MessageID returns the message identifier.
func (m SystemMessage) MessageID() string { return m.ID }

// NewSystemMessage creates a SystemMessage with a fresh identifier.
func NewSystemMessage(content string) SystemMessage {
	return SystemMessage{ID: util.NewMessageID(), Content: content}
}

// UserMessage carries one turn of human input.
type UserMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (UserMessage) isMessage() {}

// Role returns RoleUser.
func (UserMessage) Role() Role { return RoleUser }

// MessageID returns the message identifier.
func (m UserMessage) MessageID() string { return m.ID }

// NewUserMessage creates a UserMessage with a fresh identifier.
func NewUserMessage(content string) UserMessage {
	return UserMessage{ID: util.NewMessageID(), Content: content}
}

// AssistantMessage carries model output: assistant text, zero or more
// tool-call requests, or both.
type AssistantMessage struct {
	ID        string     `json:"id"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (AssistantMessage) isMessage() {}

// Role returns RoleAssistant.
func (AssistantMessage) Role() Role { return RoleAssistant }

// MessageID returns the message identifier.
func (m AssistantMessage) MessageID() string { return m.ID }

// HasToolCalls reports whether the assistant requested any tool executions.
func (m AssistantMessage) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// NewAssistantMessage creates an AssistantMessage with a fresh identifier.
func NewAssistantMessage(content string, calls ...ToolCall) AssistantMessage {
	return AssistantMessage{ID: util.NewMessageID(), Content: content, ToolCalls: calls}
}

// ToolMessage carries the result of exactly one tool call. CallID ties the
// result back to the ToolCall that produced it.
type ToolMessage struct {
	ID       string `json:"id"`
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
	IsError  bool   `json:"is_error,omitempty"`
}

func (ToolMessage) isMessage() {}

// Role returns RoleTool.
func (ToolMessage) Role() Role { return RoleTool }

// MessageID returns the message identifier.
func (m ToolMessage) MessageID() string { return m.ID }

// NewToolMessage creates a ToolMessage with a fresh identifier.
func NewToolMessage(callID, toolName, content string) ToolMessage {
	return ToolMessage{ID: util.NewMessageID(), CallID: callID, ToolName: toolName, Content: content}
}

// messageRecord is the persisted envelope for a Message. The role field
// selects the variant on decode.
type messageRecord struct {
	Role      Role       `json:"role"`
	ID        string     `json:"id"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CallID    string     `json:"call_id,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	IsError   bool       `json:"is_error,omitempty"`
}

func encodeMessage(m Message) (messageRecord, error) {
	switch v := m.(type) {
	case SystemMessage:
		return messageRecord{Role: RoleSystem, ID: v.ID, Content: v.Content}, nil
	case UserMessage:
		return messageRecord{Role: RoleUser, ID: v.ID, Content: v.Content}, nil
	case AssistantMessage:
		return messageRecord{Role: RoleAssistant, ID: v.ID, Content: v.Content, ToolCalls: v.ToolCalls}, nil
	case ToolMessage:
		return messageRecord{Role: RoleTool, ID: v.ID, Content: v.Content, CallID: v.CallID, ToolName: v.ToolName, IsError: v.IsError}, nil
	default:
		return messageRecord{}, fmt.Errorf("unsupported message type %T", m)
	}
}

func decodeMessage(rec messageRecord) (Message, error) {
	switch rec.Role {
	case RoleSystem:
		return SystemMessage{ID: rec.ID, Content: rec.Content}, nil
	case RoleUser:
		return UserMessage{ID: rec.ID, Content: rec.Content}, nil
	case RoleAssistant:
		return AssistantMessage{ID: rec.ID, Content: rec.Content, ToolCalls: rec.ToolCalls}, nil
	case RoleTool:
		return ToolMessage{ID: rec.ID, Content: rec.Content, CallID: rec.CallID, ToolName: rec.ToolName, IsError: rec.IsError}, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", rec.Role)
	}
}

// EncodeMessages serializes a conversation log to JSON.
func EncodeMessages(msgs []Message) ([]byte, error) {
	records := make([]messageRecord, 0, len(msgs))
	for _, m := range msgs {
		rec, err := encodeMessage(m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

// DecodeMessages deserializes a conversation log produced by EncodeMessages.
func DecodeMessages(data []byte) ([]Message, error) {
	var records []messageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(records))
	for _, rec := range records {
		m, err := decodeMessage(rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
