package validator

import (
	"strings"
	"testing"
)

func TestValidateVideoID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"dQw4w9WgXcQ", true},
		{"abc_def-123", true},
		{"___________", true},
		{"", false},
		{"dQw4w9WgXc", false},
		{"dQw4w9WgXcQQ", false},
		{"dQw4w9 gXcQ", false},
		{"dQw4w9/gXcQ", false},
		{"dQw4w9WgXc.", false},
		{"dQw4w9WgXcQ\n", false},
		{"ünicode1234", false},
	}

	for _, tt := range tests {
		if got := ValidateVideoID(tt.id); got != tt.want {
			t.Errorf("ValidateVideoID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"simple", "never gonna give you up", true},
		{"single char", "a", true},
		{"padded", "   lofi   ", true},
		{"exactly max", strings.Repeat("x", MaxQueryLength), true},
		{"max after trim", "  " + strings.Repeat("x", MaxQueryLength) + "  ", true},
		{"multibyte max", strings.Repeat("é", MaxQueryLength), true},
		{"empty", "", false},
		{"whitespace", " \t\n ", false},
		{"over max", strings.Repeat("x", MaxQueryLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateQuery(tt.query); got != tt.want {
				t.Errorf("ValidateQuery(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestNormalizeQuery(t *testing.T) {
	if got := NormalizeQuery("  lofi beats \n"); got != "lofi beats" {
		t.Errorf("NormalizeQuery() = %q", got)
	}
}
