package util

import (
	"strings"
	"testing"
)

func TestHashKey(t *testing.T) {
	id := "0b6f0e3c-6b1d-4a8e-9b7a-1f7f0d2c9a11"
	got := HashKey(id)
	if got != HashKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "tailored_resume.tex", want: "tailored_resume.tex"},
		{in: " a/b\\c.tex ", want: "a_b_c.tex"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "line\nbreak.tex", wantErr: true},
		{in: strings.Repeat("x", MaxFileNameLength+1), wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v", tt.in, got, err)
		}
	}
}
