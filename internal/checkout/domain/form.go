package domain

import (
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"
)

type Form struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerAddress string `json:"customerAddress"`
}

const (
	MsgNameRequired    = "Name required"
	MsgInvalidEmail    = "Invalid email"
	MsgPhoneRequired   = "Phone required"
	MsgAddressRequired = "Address required"
)

// ValidationError carries one message per offending form field, keyed by the
// field's JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid checkout form: " + strings.Join(parts, "; ")
}

// Normalize trims every field.
func (f Form) Normalize() Form {
	return Form{
		CustomerName:    strings.TrimSpace(f.CustomerName),
		CustomerEmail:   strings.TrimSpace(f.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(f.CustomerPhone),
		CustomerAddress: strings.TrimSpace(f.CustomerAddress),
	}
}

func (f Form) Validate() error {
	fields := map[string]string{}

	if utf8.RuneCountInString(f.CustomerName) < 2 {
		fields["customerName"] = MsgNameRequired
	}
	if !validEmail(f.CustomerEmail) {
		fields["customerEmail"] = MsgInvalidEmail
	}
	if utf8.RuneCountInString(f.CustomerPhone) < 7 {
		fields["customerPhone"] = MsgPhoneRequired
	}
	if utf8.RuneCountInString(f.CustomerAddress) < 2 {
		fields["customerAddress"] = MsgAddressRequired
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// validEmail accepts a bare addr-spec with a dotted domain.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
