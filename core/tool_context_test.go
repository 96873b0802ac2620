package core

import (
	"context"
	"testing"
)

func TestToolContext_StagedFieldWrites(t *testing.T) {
	state := NewConversationState("t1").WithFields(map[string]any{"employee_name": "Ada"})
	tc := NewToolContext(context.Background(), "t1", "call-1", &state, nil)

	if v, ok := tc.GetField("employee_name"); !ok || v != "Ada" {
		t.Fatalf("snapshot read failed: %v", v)
	}

	tc.SetField("starter_kit", "mouse")

	// Staged writes are visible through the context but not the snapshot.
	if v, ok := tc.GetField("starter_kit"); !ok || v != "mouse" {
		t.Error("staged write not readable through context")
	}
	if _, ok := state.Field("starter_kit"); ok {
		t.Error("staged write leaked into snapshot")
	}

	delta := tc.FieldDelta()
	if len(delta) != 1 || delta["starter_kit"] != "mouse" {
		t.Fatalf("unexpected delta: %+v", delta)
	}

	// The returned delta is a copy.
	delta["starter_kit"] = "keyboard"
	if v, _ := tc.GetField("starter_kit"); v != "mouse" {
		t.Error("delta copy write leaked back into context")
	}
}

func TestToolContext_DeltaShadowsSnapshot(t *testing.T) {
	state := NewConversationState("t1").WithFields(map[string]any{"starter_kit": "mouse"})
	tc := NewToolContext(context.Background(), "t1", "call-1", &state, nil)

	tc.SetField("starter_kit", "backpack")
	if v, _ := tc.GetField("starter_kit"); v != "backpack" {
		t.Errorf("delta should shadow snapshot, got %v", v)
	}
}

func TestToolContext_EmptyDeltaIsNil(t *testing.T) {
	state := NewConversationState("t1")
	tc := NewToolContext(context.Background(), "t1", "call-1", &state, nil)
	if tc.FieldDelta() != nil {
		t.Error("expected nil delta when nothing was written")
	}
}

func TestToolContext_Validate(t *testing.T) {
	state := NewConversationState("t1")
	tc := NewToolContext(context.Background(), "t1", "call-1", &state, nil)
	if err := tc.Validate(); err != nil {
		t.Errorf("valid context rejected: %v", err)
	}

	bad := NewToolContext(context.Background(), "", "call-1", &state, nil)
	if err := bad.Validate(); err == nil {
		t.Error("expected validation failure for missing thread id")
	}
}
