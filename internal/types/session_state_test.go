// SPDX-License-Identifier: MIT

package types

import (
	"encoding/json"
	"testing"
)

func TestSessionState_Classification(t *testing.T) {
	tests := []struct {
		state    SessionState
		valid    bool
		active   bool
		terminal bool
	}{
		{SessionIdle, true, false, false},
		{SessionUploading, true, true, false},
		{SessionProcessing, true, true, false},
		{SessionComplete, true, false, true},
		{SessionError, true, false, true},
		{SessionState(""), false, false, false},
		{SessionState("done"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.state.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestSessionState_JSON(t *testing.T) {
	data, err := json.Marshal(SessionProcessing)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"processing"` {
		t.Fatalf("marshal = %s, want \"processing\"", data)
	}

	var s SessionState
	if err := json.Unmarshal([]byte(`"complete"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != SessionComplete {
		t.Fatalf("unmarshal = %v, want complete", s)
	}

	if err := json.Unmarshal([]byte(`"finished"`), &s); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestAllSessionStates_AreValid(t *testing.T) {
	for _, s := range AllSessionStates() {
		if _, err := ParseSessionState(string(s)); err != nil {
			t.Errorf("ParseSessionState(%q) error: %v", s, err)
		}
	}
}
