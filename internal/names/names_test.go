package names

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "Jiri"},
		{"Novák", "Novak"},
		{"Müller", "Muller"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPersonKey(t *testing.T) {
	if PersonKey("Jiří Novák", "Jirka") != PersonKey("  jiri novak ", "JIRKA") {
		t.Error("keys should match regardless of case, whitespace and diacritics")
	}
	if PersonKey("Jan Novák", "Jan") == PersonKey("Jan", "Novák Jan") {
		t.Error("field boundaries must be preserved in the key")
	}
}

func TestDogKey(t *testing.T) {
	if DogKey("Rex", "Labrador", "Petr") != DogKey("rex ", " labrador", "petr") {
		t.Error("keys should match after normalization")
	}
	if DogKey("Rex", "Labrador", "Petr") == DogKey("Rex", "Labrador", "Pavel") {
		t.Error("different owners must produce different keys")
	}
}
