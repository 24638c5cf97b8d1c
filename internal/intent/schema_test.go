package intent

import "testing"

func TestSanitizeJSONPayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced bare", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Sure! {\"a\":1} Enjoy.", `{"a":1}`},
		{"no object", "nothing here", "nothing here"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeJSONPayload(tt.in); got != tt.want {
				t.Errorf("sanitizeJSONPayload(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidatePayloadAcceptsNulls(t *testing.T) {
	payload := `{"search_params":{"keywords":null,"year_from":null,"sort_by":null},"response_title":"ok"}`
	if err := validatePayload(payload); err != nil {
		t.Fatalf("expected nulls to be accepted: %v", err)
	}
}
