package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2026-03-01T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimePlainDate(t *testing.T) {
	got, ok := ParseTime("2026-03-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	y, m, d := got.Date()
	if y != 2026 || m != time.March || d != 1 {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not-a-date", "-5"} {
		if _, ok := ParseTime(s); ok {
			t.Fatalf("%q: expected parse failure", s)
		}
	}
}

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("42", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := ParseIntDefault("", 7); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
	if got := ParseIntDefault("oops", 7); got != 7 {
		t.Fatalf("expected default on invalid input, got %d", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)); got != "2026-03-01" {
		t.Fatalf("unexpected %q", got)
	}
}
