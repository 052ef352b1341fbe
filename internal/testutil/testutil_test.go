package testutil

import (
	"errors"
	"testing"
	"time"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	AssertError(t, errors.New("boom"))
}

func TestMustTime(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Time{
		"2024-03-01 10:04:05":  time.Date(2024, 3, 1, 10, 4, 5, 0, time.UTC),
		"2024-03-01 10:04":     time.Date(2024, 3, 1, 10, 4, 0, 0, time.UTC),
		"2024-03-01T10:04:00Z": time.Date(2024, 3, 1, 10, 4, 0, 0, time.UTC),
	}
	for in, want := range cases {
		if got := MustTime(t, in); !got.Equal(want) {
			t.Errorf("MustTime(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDay(t *testing.T) {
	t.Parallel()

	got := Day(t, "09:30")
	if got.Hour() != 9 || got.Minute() != 30 || got.Day() != 1 {
		t.Errorf("Day(09:30) = %v", got)
	}
}
