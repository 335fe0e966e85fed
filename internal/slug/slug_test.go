package slug

import (
	"regexp"
	"testing"
)

func TestMake(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"accents and punctuation", "Café com Leite!", "cafe-com-leite"},
		{"simple words", "Hello World", "hello-world"},
		{"collapses whitespace", "  Go   Lang  ", "go-lang"},
		{"tabs and newlines", "go\t\nlang", "go-lang"},
		{"non-breaking space", "go\u00a0lang", "go-lang"},
		{"keeps existing hyphens", "already-a-slug", "already-a-slug"},
		{"collapses hyphen runs", "a -- b", "a-b"},
		{"keeps underscores", "snake_case title", "snake_case-title"},
		{"digits", "Top 10 Videos", "top-10-videos"},
		{"portuguese", "Programação Avançada", "programacao-avancada"},
		{"only symbols", "!!!???", ""},
		{"non latin script dropped", "日本語", ""},
		{"emoji dropped", "🐉 Dragons", "dragons"},
		{"uppercase accents", "ÉLAN VITAL", "elan-vital"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Make(tt.input); got != tt.expected {
				t.Errorf("Make(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

var slugShape = regexp.MustCompile(`^([a-z0-9_]+(-[a-z0-9_]+)*)?$`)

func TestMake_OutputShapeAndIdempotence(t *testing.T) {
	inputs := []string{
		"",
		" ",
		"-",
		"Café com Leite!",
		"  --leading and trailing--  ",
		"Ünïcödé Çhàrs",
		"mixed_CASE with-hyphens and   spaces",
		"tab\tseparated\tvalues",
		"emoji 🎉 party",
		"straße",
		"İstanbul",
		"a - b - c",
	}

	for _, in := range inputs {
		out := Make(in)
		if !slugShape.MatchString(out) {
			t.Errorf("Make(%q) = %q contains characters outside [a-z0-9_-] or stray hyphens", in, out)
		}
		if again := Make(out); again != out {
			t.Errorf("Make not idempotent for %q: %q -> %q", in, out, again)
		}
	}
}
