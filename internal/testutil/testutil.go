// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"
	"time"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// fixtureLayouts are the timestamp forms accepted by MustTime.
var fixtureLayouts = []string{
	time.DateTime,
	"2006-01-02 15:04",
	time.RFC3339,
}

// MustTime parses a fixture timestamp in UTC or fails the test.
func MustTime(t testing.TB, s string) time.Time {
	t.Helper()
	for _, layout := range fixtureLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts
		}
	}
	t.Fatalf("bad fixture timestamp %q", s)
	return time.Time{}
}

// Day returns the fixture timestamp hh:mm on a fixed test day.
func Day(t testing.TB, hhmm string) time.Time {
	t.Helper()
	return MustTime(t, "2024-03-01 "+hhmm)
}
