package domain

import "strings"

// State is where a session's checkout stands. A submission is only refused
// while another one is Submitting.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateRedirecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateRedirecting:
		return "redirecting"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Redirect is where the client goes after a successful initiation. External
// targets need a full navigation; the rest are in-app routes.
type Redirect struct {
	URL      string `json:"url"`
	External bool   `json:"external"`
}

func NewRedirect(paymentURL string) Redirect {
	return Redirect{URL: paymentURL, External: strings.HasPrefix(paymentURL, "http")}
}
