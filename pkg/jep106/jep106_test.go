package jep106

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		name      string
		code      uint16
		wantAbbr  string
		wantKnown bool
	}{
		{name: "ARM", code: Code(4, 0x3B), wantAbbr: "ARM", wantKnown: true},
		{name: "ST", code: Code(0, 0x20), wantAbbr: "STM", wantKnown: true},
		{name: "Nordic", code: Code(2, 0x44), wantAbbr: "Nordic", wantKnown: true},
		{name: "unknown", code: Code(7, 0x7F), wantAbbr: "Unknown", wantKnown: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, known := Lookup(tt.code)
			if known != tt.wantKnown {
				t.Fatalf("known = %v, want %v", known, tt.wantKnown)
			}
			if m.Abbreviation != tt.wantAbbr {
				t.Errorf("abbreviation = %q, want %q", m.Abbreviation, tt.wantAbbr)
			}
			if m.Code != tt.code {
				t.Errorf("code = 0x%03X, want 0x%03X", m.Code, tt.code)
			}
		})
	}
}

func TestCode(t *testing.T) {
	if got := Code(4, 0x3B); got != 0x23B {
		t.Fatalf("Code(4, 0x3B) = 0x%03X, want 0x23B", got)
	}
	// The identity field is 7 bits; the parity bit must not leak in.
	if got := Code(0, 0xFF); got != 0x07F {
		t.Fatalf("Code(0, 0xFF) = 0x%03X, want 0x07F", got)
	}
}
