package stages

import (
	"testing"

	"github.com/archon-installer/archon/prompt"
)

func TestValidUsername(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"bob", true},
		{"_user-1", true},
		{"alice99", true},
		{"a", true},
		{"Bob", false},
		{"1user", false},
		{"", false},
		{"user name", false},
		{"-dash", false},
	}
	for _, tt := range tests {
		if got := ValidUsername(tt.name); got != tt.valid {
			t.Errorf("ValidUsername(%q): got %v, want %v", tt.name, got, tt.valid)
		}
	}
}

func TestPromptPasswordRetries(t *testing.T) {
	// Empty, then a mismatched pair, then a matching pair.
	script := &prompt.Script{
		Passwords: []string{"", "secret", "typo", "secret", "secret"},
	}
	pw, err := promptPassword(script, "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pw != "secret" {
		t.Errorf("got %q, want %q", pw, "secret")
	}
	if len(script.Warnings) != 2 {
		t.Errorf("expected warnings for the empty and mismatched attempts, got %v", script.Warnings)
	}
}
