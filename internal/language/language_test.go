package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"en-US", "en"},
		{"ES", "es"},
		{"  fr  ", "fr"},
		{"", ""},
		{"not-a-language", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.input); got != tt.want {
			t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("en"); got != "English" {
		t.Errorf("DisplayName(en) = %q, want English", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Errorf("DisplayName(empty) = %q, want Unknown", got)
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("en") {
		t.Error("IsValid(en) = false")
	}
	if IsValid("zz-not-real!") {
		t.Error("IsValid rejected nothing")
	}
}
