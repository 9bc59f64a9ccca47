package main

import (
	"strings"
	"testing"
	"time"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"SESSION", "ROWS"},
		[][]string{{"bench", "117180"}, {"short"}},
		[]bool{false, true},
	)
	if !strings.Contains(out, "SESSION") || !strings.Contains(out, "ROWS") {
		t.Fatalf("expected headers in output:\n%s", out)
	}
	if !strings.Contains(out, "bench") || !strings.Contains(out, "117180") {
		t.Fatalf("expected row values in output:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 4 {
		t.Fatalf("expected bordered table, got %d lines:\n%s", len(lines), out)
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, nil, nil); out != "" {
		t.Fatalf("expected empty output for empty headers, got %q", out)
	}
}

func TestYesNo(t *testing.T) {
	if yesNo(true) != "yes" || yesNo(false) != "no" {
		t.Fatal("yesNo mapping broken")
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Time{}); got != "-" {
		t.Fatalf("expected dash for zero time, got %q", got)
	}
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := formatTime(ts)
	if !strings.Contains(got, "2026") {
		t.Fatalf("expected formatted timestamp, got %q", got)
	}
}
