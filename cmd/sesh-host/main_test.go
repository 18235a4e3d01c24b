package main

import "testing"

func TestRunRejectsTooFewArgs(t *testing.T) {
	if code := run([]string{"abcd1234", "80", "24"}); code != 2 {
		t.Fatalf("code = %d, want 2", code)
	}
}

func TestRunRejectsNonNumericCols(t *testing.T) {
	code := run([]string{"abcd1234", "wide", "24", "/tmp", "/bin/sh"})
	if code != 2 {
		t.Fatalf("code = %d, want 2", code)
	}
}

func TestRunRejectsNonNumericRows(t *testing.T) {
	code := run([]string{"abcd1234", "80", "tall", "/tmp", "/bin/sh"})
	if code != 2 {
		t.Fatalf("code = %d, want 2", code)
	}
}
