package main

import "testing"

func TestParseFlags(t *testing.T) {
	req, err := parseFlags([]string{"submit", "--email", "a@example.com", "--amount", "25", "--destination", "TXYZ"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.command != "submit" || req.amount != "25" || req.actor != "admin" {
		t.Errorf("unexpected request: %+v", req)
	}

	tests := [][]string{
		nil,
		{"submit", "--email", "a@example.com"},
		{"approve"},
		{"cancel", "--id", "x"},
	}
	for _, args := range tests {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("parseFlags(%v) = nil error, want error", args)
		}
	}
}
