// Package effect defines the closed set of video effects a user can select.
//
// An ID is a plain value: two selections of the same effect always compare
// equal, which is what lets the processor cache deduplicate by effect.
package effect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknown indicates a name that does not belong to the effect set.
var ErrUnknown = errors.New("unknown effect")

// ID identifies a video effect.
type ID uint8

const (
	// None means the raw stream is shown unprocessed
	None ID = iota
	// Blur applies a background blur
	Blur
	// Overlay replaces the background with a configured backdrop
	Overlay
)

var names = [...]string{
	None:    "none",
	Blur:    "blur",
	Overlay: "overlay",
}

// All returns every effect in declaration order.
func All() []ID {
	return []ID{None, Blur, Overlay}
}

// Valid reports whether id belongs to the effect set.
func (id ID) Valid() bool {
	return int(id) < len(names)
}

// String returns the canonical lowercase name.
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("effect(%d)", uint8(id))
	}
	return names[id]
}

// Parse resolves an effect name. Matching ignores case and surrounding
// whitespace.
func Parse(name string) (ID, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range names {
		if candidate == n {
			return ID(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// ParseList resolves a comma-separated list of effect names.
func ParseList(list string) ([]ID, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	parts := strings.Split(list, ",")
	ids := make([]ID, 0, len(parts))
	for _, part := range parts {
		id, err := Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Toggle returns the effect that results from selecting next while current
// is active. Selecting the active effect again deselects it.
func Toggle(current, next ID) ID {
	if next == current {
		return None
	}
	return next
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, uint8(id))
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
