// Package encoders holds the categorical label encoders exported from
// training. Each encoder maps a category string to the integer code the model
// was trained with; codes are positions in the trained class list.
package encoders

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/windbreaker/internal/common"
)

// ErrDuplicateClass is returned when a class list repeats a value.
var ErrDuplicateClass = errors.New("duplicate class")

// LabelEncoder is an immutable bidirectional category <-> code mapping.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder builds an encoder where classes[i] has code i.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	e := &LabelEncoder{
		classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	copy(e.classes, classes)

	for i, c := range e.classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateClass, c)
		}
		e.index[c] = i
	}
	return e, nil
}

// Code returns the trained code for value, or common.ErrUnknownCategory.
func (e *LabelEncoder) Code(value string) (int, error) {
	code, ok := e.index[value]
	if !ok {
		return 0, common.ErrUnknownCategory
	}
	return code, nil
}

// Value is the inverse of Code.
func (e *LabelEncoder) Value(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("code %d: %w", code, common.ErrNotFound)
	}
	return e.classes[code], nil
}

// Len is the vocabulary size.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}
