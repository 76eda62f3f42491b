package encoders

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// FallbackCode is fed to the model for categories it has never seen.
const FallbackCode = 0

// ErrUnknownFeature is returned when a feature has no encoder.
var ErrUnknownFeature = errors.New("unknown feature")

// MissHook is told about every value that fell back to FallbackCode.
type MissHook func(feature, value string)

// Registry holds the encoders of one model family, keyed by feature name.
// It is read-only after construction.
type Registry struct {
	encoders map[string]*LabelEncoder
	onMiss   MissHook
}

// NewRegistry builds a registry from feature -> class list.
func NewRegistry(vocab map[string][]string) (*Registry, error) {
	r := &Registry{encoders: make(map[string]*LabelEncoder, len(vocab))}
	for feature, classes := range vocab {
		enc, err := NewLabelEncoder(classes)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", feature, err)
		}
		r.encoders[feature] = enc
	}
	return r, nil
}

// LoadRegistry reads the JSON artifact {"<feature>": ["class0", ...], ...}.
func LoadRegistry(rd io.Reader) (*Registry, error) {
	var vocab map[string][]string
	if err := json.NewDecoder(rd).Decode(&vocab); err != nil {
		return nil, fmt.Errorf("decode encoders: %w", err)
	}
	if len(vocab) == 0 {
		return nil, errors.New("decode encoders: no features")
	}
	return NewRegistry(vocab)
}

// WithMissHook returns a registry sharing r's encoders that reports misses
// to hook.
func (r *Registry) WithMissHook(hook MissHook) *Registry {
	return &Registry{encoders: r.encoders, onMiss: hook}
}

// Encode maps raw to its trained code. Surrounding whitespace is ignored.
// Unknown values, and features without an encoder, yield FallbackCode; this
// is the only place the fallback is applied.
func (r *Registry) Encode(feature, raw string) int {
	value := strings.TrimSpace(raw)

	enc, ok := r.encoders[feature]
	if ok {
		if code, err := enc.Code(value); err == nil {
			return code
		}
	}

	if r.onMiss != nil {
		r.onMiss(feature, value)
	}
	return FallbackCode
}

// Decode maps a code back to its category.
func (r *Registry) Decode(feature string, code int) (string, error) {
	enc, ok := r.encoders[feature]
	if !ok {
		return "", fmt.Errorf("%s: %w", feature, ErrUnknownFeature)
	}
	return enc.Value(code)
}

// Classes decodes every code of feature, so the result is in code order
// and owned by the caller.
func (r *Registry) Classes(feature string) ([]string, error) {
	enc, ok := r.encoders[feature]
	if !ok {
		return nil, fmt.Errorf("%s: %w", feature, ErrUnknownFeature)
	}
	out := make([]string, enc.Len())
	for code := range out {
		v, err := r.Decode(feature, code)
		if err != nil {
			return nil, err
		}
		out[code] = v
	}
	return out, nil
}

// Has reports whether feature has an encoder.
func (r *Registry) Has(feature string) bool {
	_, ok := r.encoders[feature]
	return ok
}

// Require fails with ErrUnknownFeature naming every missing feature.
func (r *Registry) Require(features ...string) error {
	var missing []string
	for _, f := range features {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, strings.Join(missing, ", "))
	}
	return nil
}

// Features lists the encoded feature names, sorted.
func (r *Registry) Features() []string {
	out := make([]string, 0, len(r.encoders))
	for f := range r.encoders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
