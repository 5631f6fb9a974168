package security

import (
	"strings"
	"testing"
)

func TestPlainText_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Le gouvernement annonce un plan.", "Le gouvernement annonce un plan."},
		{"paragraph", "<p>Bonjour <strong>tout le monde</strong></p>", "Bonjour tout le monde"},
		{"link", `<a href="https://example.fr">Lire la suite</a>`, "Lire la suite"},
		{"entities", "Prix &amp; salaires : l&#39;inflation", "Prix & salaires : l'inflation"},
		{"whitespace", "  Une\n\nphrase\t  courte ", "Une phrase courte"},
		{"accents", "Élections régionales à Montréal", "Élections régionales à Montréal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.PlainText(tc.in); got != tc.want {
				t.Errorf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPlainText_RemovesScripts(t *testing.T) {
	s := NewTextSanitizer()

	payloads := []string{
		`<script>alert('xss')</script>Titre`,
		`<img src=x onerror=alert(1)>Titre`,
		`<iframe src="https://evil.example"></iframe>Titre`,
		`<style>body{}</style>Titre`,
	}
	for _, p := range payloads {
		got := s.PlainText(p)
		if strings.Contains(got, "<") || strings.Contains(got, "alert(") {
			t.Errorf("PlainText(%q) = %q, should not contain markup", p, got)
		}
		if !strings.Contains(got, "Titre") {
			t.Errorf("PlainText(%q) = %q, should keep text", p, got)
		}
	}
}

func TestPlainText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	in := "<p>La Bourse &gt; 7 000 points</p>"
	first := s.PlainText(in)
	if second := s.PlainText(first); second != first {
		t.Errorf("PlainText is not idempotent: %q -> %q", first, second)
	}
}
