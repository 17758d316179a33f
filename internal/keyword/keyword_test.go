package keyword

import (
	"slices"
	"testing"
)

func TestNew_DropsEmptyAndDuplicates(t *testing.T) {
	t.Parallel()

	s := New("error", "", "fail", "error", "Exception")
	want := []string{"error", "fail", "Exception"}
	if got := s.Words(); !slices.Equal(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	s := New("error", "StripeInvalidRequestError")

	tests := []struct {
		line string
		want bool
	}{
		{"2024-01-01 00:00:00: error X occurred", true},
		{"StripeInvalidRequestError: No such customer", true},
		{"ERROR uppercase does not match", false},
		{"all good", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			if got := s.Match(tt.line); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestZeroValueMatchesNothing(t *testing.T) {
	t.Parallel()

	var s Set
	if s.Match("error") {
		t.Error("zero Set should not match")
	}
}

func TestWords_ReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New("ERROR", "FATAL")
	w := s.Words()
	w[0] = "panic"
	if got := s.Words()[0]; got != "ERROR" {
		t.Errorf("Words()[0] = %q after mutating a copy, want ERROR", got)
	}
	if s.Match("panic") {
		t.Error("mutating Words() result changed the set")
	}
}
