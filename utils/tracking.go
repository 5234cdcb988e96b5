package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// TrackingTokenBytes is the entropy of a tracking token (256 bits).
const TrackingTokenBytes = 32

// Placeholder spellings accepted in campaign templates. Older templates use
// {{link}} or the upper case form for the tracking link.
var (
	trackingURLPlaceholders = []string{"{{tracking_url}}", "{{ tracking_url }}", "{{TRACKING_URL}}", "{{link}}"}
	namePlaceholders        = []string{"{{name}}", "{{ name }}", "{{full_name}}"}
	emailPlaceholders       = []string{"{{email}}", "{{ email }}"}
)

// GenerateTrackingToken returns a URL safe random token.
func GenerateTrackingToken() (string, error) {
	buf := make([]byte, TrackingTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TrackingURL builds the public link embedded in an outbound message, e.g.
// http://localhost:8000/campaigns/track/<token>.
func TrackingURL(baseURL, endpoint, token string) string {
	base := strings.TrimRight(baseURL, "/")
	endpoint = "/" + strings.Trim(endpoint, "/")
	return base + endpoint + "/" + url.PathEscape(token)
}

// LandingURL appends the token as a query parameter to the training landing
// page, preserving any query the page already carries.
func LandingURL(landing, token string) (string, error) {
	u, err := url.Parse(landing)
	if err != nil {
		return "", fmt.Errorf("invalid landing url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Recipient is what a template can refer to about the person receiving it.
type Recipient struct {
	Name  string
	Email string
}

// RenderTemplate replaces the known placeholders with literal text.
// Unknown placeholders are left untouched.
func RenderTemplate(html string, to Recipient, trackingURL string) string {
	pairs := make([]string, 0, 2*(len(trackingURLPlaceholders)+len(namePlaceholders)+len(emailPlaceholders)))
	for _, p := range trackingURLPlaceholders {
		pairs = append(pairs, p, trackingURL)
	}
	for _, p := range namePlaceholders {
		pairs = append(pairs, p, to.Name)
	}
	for _, p := range emailPlaceholders {
		pairs = append(pairs, p, to.Email)
	}
	return strings.NewReplacer(pairs...).Replace(html)
}
