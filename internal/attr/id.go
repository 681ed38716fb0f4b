package attr

import (
	"fmt"
	"strings"

	"github.com/franz/music-ledger/internal/util"
)

// PersistentIDLength is the fixed width of a persistent id in hex digits
const PersistentIDLength = 16

// FormatPersistentID renders a numeric id in the fixed-width hex form
func FormatPersistentID(n uint64) string {
	return fmt.Sprintf("%016X", n)
}

// ParsePersistentID validates a persistent id and normalizes it to upper case
func ParsePersistentID(s string) (string, error) {
	if len(s) != PersistentIDLength {
		return "", fmt.Errorf("%w: %q has length %d, want %d", util.ErrInvalidID, s, len(s), PersistentIDLength)
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return "", fmt.Errorf("%w: %q contains %q", util.ErrInvalidID, s, r)
		}
	}
	return strings.ToUpper(s), nil
}
