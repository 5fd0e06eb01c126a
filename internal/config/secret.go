package config

import "encoding/json"

const redacted = "[REDACTED]"

// Secret holds a credential such as a Stripe key or session secret. It
// prints as [REDACTED] through fmt, JSON, text and YAML encoders. Use
// Value to read it.
type Secret string

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether the secret is non-empty.
func (s Secret) IsSet() bool { return s != "" }

// String implements fmt.Stringer. Unset secrets print as empty.
func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s Secret) MarshalYAML() (interface{}, error) { return s.String(), nil }

// UnmarshalText implements encoding.TextUnmarshaler so koanf can decode
// secrets from environment strings.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
