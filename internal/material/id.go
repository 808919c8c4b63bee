package material

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned by ParseID for ids without a known prefix or
// with an empty source id.
var ErrInvalidID = errors.New("invalid material id")

// MakeID returns the globally unique id <PREFIX><sourceID>.
func MakeID(source Source, sourceID string) string {
	return source.Prefix() + sourceID
}

// ParseID splits a prefixed id into its source and source id.
func ParseID(id string) (Source, string, error) {
	for _, s := range Sources() {
		p := s.Prefix()
		if strings.HasPrefix(id, p) {
			rest := id[len(p):]
			if rest == "" {
				return "", "", fmt.Errorf("%w: %q has no source id", ErrInvalidID, id)
			}
			return s, rest, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q has no known source prefix", ErrInvalidID, id)
}

// HasPrefix reports whether id belongs to source.
func HasPrefix(id string, source Source) bool {
	p := source.Prefix()
	return p != "" && strings.HasPrefix(id, p) && len(id) > len(p)
}
