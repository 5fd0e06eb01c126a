package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/tradetally/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	maskKey     = "[REDACTED]"
	maskPattern = "[REDACTED:pattern]"
	maxPattern  = 200
)

// Secret creates a field that records only the length of a config.Secret.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString creates a field with the value replaced by its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// compilePatterns validates and compiles value redaction patterns.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if len(p) > maxPattern {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPattern, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// RedactingEncoder masks fields whose key is sensitive, and string values
// that look like bearer tokens, Stripe keys or webhook secrets.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base with the rules in cfg. A disabled config
// returns a pass-through encoder.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	enc := &RedactingEncoder{Encoder: base}
	if !cfg.Enabled {
		return enc, nil
	}
	patterns, err := compilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	enc.patterns = patterns
	enc.keys = make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		enc.keys[normalizeKey(f)] = struct{}{}
	}
	return enc, nil
}

// normalizeKey folds "Stripe-Signature" and "stripe_signature" together.
func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "-", "_")
}

func (e *RedactingEncoder) masked(key string) bool {
	if len(e.keys) == 0 {
		return false
	}
	_, ok := e.keys[normalizeKey(key)]
	if ok {
		e.Encoder.AddString(key, maskKey)
	}
	return ok
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.masked(key) {
		return
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			e.Encoder.AddString(key, maskPattern)
			return
		}
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if !e.masked(key) {
		e.Encoder.AddByteString(key, val)
	}
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if !e.masked(key) {
		e.Encoder.AddBinary(key, val)
	}
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.masked(key) {
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.masked(key) {
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.masked(key) {
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry routes per-entry fields through the redacting methods before
// the wrapped encoder serializes the entry.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := e.clone()
	for i := range fields {
		fields[i].AddTo(c)
	}
	return c.Encoder.EncodeEntry(ent, nil)
}

// Clone creates a copy of the encoder sharing its rules.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return e.clone()
}

func (e *RedactingEncoder) clone() *RedactingEncoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		keys:     e.keys,
		patterns: e.patterns,
	}
}
