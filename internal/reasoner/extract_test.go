package reasoner

import "testing"

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"action":"respond"}`, `{"action":"respond"}`},
		{"fenced", "```json\n{\"action\":\"respond\"}\n```", `{"action":"respond"}`},
		{"prose around", `Sure! Here is the plan: {"action":"delegate","worker":"balance"} Hope that helps.`, `{"action":"delegate","worker":"balance"}`},
		{"nested", `{"a":{"b":{"c":1}}}`, `{"a":{"b":{"c":1}}}`},
		{"braces in strings", `{"speech":"use {curly} braces"}`, `{"speech":"use {curly} braces"}`},
		{"escaped quote in string", `{"speech":"she said \"{\" loudly"}`, `{"speech":"she said \"{\" loudly"}`},
		{"first of two", `{"a":1} {"b":2}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObject(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractObjectErrors(t *testing.T) {
	if _, err := ExtractObject("no json here"); err == nil {
		t.Error("expected error for prose with no object")
	}
	if _, err := ExtractObject(`{"unclosed": true`); err == nil {
		t.Error("expected error for unbalanced object")
	}
	if _, err := ExtractObject(""); err == nil {
		t.Error("expected error for empty input")
	}
}
