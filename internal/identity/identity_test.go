package identity

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"e164", "+14155551234", "4155551234"},
		{"formatted", "(415) 555-1234", "4155551234"},
		{"dotted", "415.555.1234", "4155551234"},
		{"ten digits", "4155551234", "4155551234"},
		{"long international", "+44 20 7946 0958", "2079460958"},
		{"email handle", "alice@example.com", "alice@example.com"},
		{"short code", "72345", "72345"},
		{"nine digits keeps raw", "+41555512", "+41555512"},
		{"empty", "", ""},
		{"handle with digits", "bob99@icloud.com", "bob99@icloud.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.input); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKeyIdempotent(t *testing.T) {
	inputs := []string{"+1 (415) 555-1234", "alice@example.com", "12", "+447911123456", ""}
	for _, in := range inputs {
		once := Key(in)
		if twice := Key(once); twice != once {
			t.Errorf("Key(Key(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestSameCollapsesCountryCode(t *testing.T) {
	if !Same("+14155551234", "4155551234") {
		t.Error("country code variant should match")
	}
	if !Same("1-415-555-1234", "(415) 555 1234") {
		t.Error("formatting variants should match")
	}
	if Same("alice@example.com", "Alice@example.com") {
		t.Error("non-numeric handles match exactly, case included")
	}
}
