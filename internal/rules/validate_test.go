package rules

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr string
	}{
		{"clean replace", Rule{Pattern: "^whoami$", Action: Replace{Output: "root"}}, ""},
		{"clean filter", Rule{Pattern: "^ps", Action: Filter{Command: "grep -v ssh", Condition: "grep -q ssh"}}, ""},
		{"empty pattern", Rule{Action: Empty{}}, "matches every command"},
		{"bad pattern", Rule{Pattern: "([", Action: Empty{}}, "does not compile"},
		{"perl class", Rule{Pattern: `^id\d`, Action: Empty{}}, "grep -E"},
		{"lazy quantifier", Rule{Pattern: "a.*?b", Action: Empty{}}, "grep -E"},
		{"gnu lower-less bound", Rule{Pattern: "x{,2}", Action: Replace{Output: "brace"}}, "grep -E"},
		{"no action", Rule{Pattern: "x"}, "no action"},
		{"empty script", Rule{Pattern: "x", Action: Script{Body: "  "}}, "empty script"},
		{"broken script", Rule{Pattern: "x", Action: Script{Body: "if true; then"}}, "script:"},
		{"empty filter", Rule{Pattern: "x", Action: Filter{}}, "empty filter"},
		{"broken condition", Rule{Pattern: "x", Action: Filter{Command: "cat", Condition: "grep 'x"}}, "condition:"},
		{"unknown action", Rule{Pattern: "x", Action: Unknown{Name: "teleport"}}, "unknown action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultRules_Valid(t *testing.T) {
	for _, r := range DefaultRules() {
		if err := r.Validate(); err != nil {
			t.Errorf("default rule %q: %v", r.Name, err)
		}
	}

	s := NewDefaultStore()
	if s.Len() != len(DefaultRules()) {
		t.Errorf("expected default store to hold every default rule, got %d", s.Len())
	}
	for i, r := range s.List() {
		if r.ID != i+1 {
			t.Errorf("expected default rule %d to have id %d, got %d", i, i+1, r.ID)
		}
	}
}
