package entity

import "testing"

func TestFormatTokenPadsToThreeDigits(t *testing.T) {
	got := FormatToken(Email, 1)
	want := "«EMAIL_001»"
	if got != want {
		t.Errorf("FormatToken(Email, 1) = %q, want %q", got, want)
	}
}

func TestFormatTokenWidensAbove999(t *testing.T) {
	got := FormatToken(Email, 1000)
	want := "«EMAIL_1000»"
	if got != want {
		t.Errorf("FormatToken(Email, 1000) = %q, want %q", got, want)
	}
}

func TestMatchLen(t *testing.T) {
	m := Match{Start: 5, End: 12}
	if m.Len() != 7 {
		t.Errorf("Len() = %d, want 7", m.Len())
	}
}
