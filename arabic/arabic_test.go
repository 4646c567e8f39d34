package arabic

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"whitespace", "   \t\n", false},
		{"latin", "hello world", false},
		{"digits", "12345", false},
		{"arabic", "مرحبا", true},
		{"mixed", "hello مرحبا world", true},
		{"single char", "م", true},
		{"supplement", "ݐ", true},
		{"extended a", "ࢠ", true},
		{"presentation forms a", "ﭐ", true},
		{"presentation forms b", "ﹰ", true},
		{"combining marks only latin", "é", false},
		{"arabic with harakat", "مَرْحَبًا", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.in); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRunsStartAtArabic(t *testing.T) {
	s := "Hello مرحبا"
	runs := Runs(s)
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if got := s[runs[0][0]:runs[0][1]]; got != "مرحبا" {
		t.Errorf("run = %q, want %q", got, "مرحبا")
	}
	// The Latin prefix must stay outside the run.
	if runs[0][0] == 0 {
		t.Error("run must not start at the Latin prefix")
	}
}

func TestRunsExtendOverPunctuationAndDigits(t *testing.T) {
	s := "قال: 123، نعم"
	runs := Runs(s)
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1: %v", len(runs), runs)
	}
	if got := s[runs[0][0]:runs[0][1]]; got != s {
		t.Errorf("run = %q, want whole string", got)
	}
}

func TestRunsCloseOnASCIILetters(t *testing.T) {
	s := "مرحبا world"
	runs := Runs(s)
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := s[runs[0][0]:runs[0][1]]
	// The space may extend the run, the 'w' must close it.
	if got != "مرحبا" && got != "مرحبا " {
		t.Errorf("run = %q, want %q or %q", got, "مرحبا", "مرحبا ")
	}
}

func TestRunsPure(t *testing.T) {
	s := "abc مرحبا def نص 42 xyz"
	first := Runs(s)
	second := Runs(s)
	if len(first) != len(second) {
		t.Fatalf("run counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i][0] != second[i][0] || first[i][1] != second[i][1] {
			t.Errorf("run %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestRunsNoneForLatin(t *testing.T) {
	if runs := Runs("plain english, 42."); runs != nil {
		t.Errorf("got %v, want nil", runs)
	}
}
