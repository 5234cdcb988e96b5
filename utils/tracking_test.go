package utils

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateTrackingToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateTrackingToken()
		if err != nil {
			t.Fatalf("GenerateTrackingToken: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token %q is not url safe base64: %v", tok, err)
		}
		if len(raw) < 16 {
			t.Fatalf("token carries %d bytes, want at least 16", len(raw))
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestTrackingURL(t *testing.T) {
	tests := []struct {
		base, endpoint, want string
	}{
		{"http://localhost:8000", "/campaigns/track", "http://localhost:8000/campaigns/track/abc"},
		{"http://localhost:8000/", "campaigns/track/", "http://localhost:8000/campaigns/track/abc"},
		{"https://phish.example.com/api", "/t", "https://phish.example.com/api/t/abc"},
	}
	for _, tc := range tests {
		if got := TrackingURL(tc.base, tc.endpoint, "abc"); got != tc.want {
			t.Errorf("TrackingURL(%q, %q) = %q, want %q", tc.base, tc.endpoint, got, tc.want)
		}
	}
}

func TestLandingURL(t *testing.T) {
	got, err := LandingURL("http://localhost:3000/click-alert", "tok_1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://localhost:3000/click-alert?token=tok_1" {
		t.Errorf("got %q", got)
	}

	got, err = LandingURL("http://localhost:3000/click-alert?lang=pt", "tok_1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://localhost:3000/click-alert?lang=pt&token=tok_1" {
		t.Errorf("existing query lost: %q", got)
	}
}

func TestRenderTemplate(t *testing.T) {
	to := Recipient{Name: "Ana Souza", Email: "ana@example.com"}
	link := "http://localhost:8000/campaigns/track/xyz"

	tests := []struct {
		name, in, want string
	}{
		{"tracking spellings",
			`<a href="{{tracking_url}}">a</a><a href="{{ tracking_url }}">b</a><a href="{{TRACKING_URL}}">c</a><a href="{{link}}">d</a>`,
			`<a href="` + link + `">a</a><a href="` + link + `">b</a><a href="` + link + `">c</a><a href="` + link + `">d</a>`},
		{"name and email", "Olá {{name}} ({{email}}), {{ name }} / {{full_name}} / {{ email }}",
			"Olá Ana Souza (ana@example.com), Ana Souza / Ana Souza / ana@example.com"},
		{"unknown left verbatim", "{{company}} {{ Name }} {{tracking_url}}", "{{company}} {{ Name }} " + link},
		{"repeated", "{{link}}{{link}}", link + link},
		{"no placeholders", "<p>hi</p>", "<p>hi</p>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderTemplate(tc.in, to, link); got != tc.want {
				t.Errorf("got %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestRenderTemplateDoesNotReexpand(t *testing.T) {
	to := Recipient{Name: "{{email}}", Email: "x@example.com"}
	got := RenderTemplate("{{name}}", to, "")
	if !strings.Contains(got, "{{email}}") {
		t.Errorf("substituted value was expanded again: %q", got)
	}
}
