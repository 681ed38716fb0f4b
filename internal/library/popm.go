package library

import (
	"bytes"
	"fmt"
)

// Popularimeter is a decoded ID3v2 POPM frame
type Popularimeter struct {
	Email   string
	Rating  byte // 0 is unrated, 1-255 otherwise
	Counter int64
	// HasCounter is false when the frame omits the play counter
	HasCounter bool
}

// ParsePOPM decodes a POPM frame body: a NUL-terminated email, one rating
// byte and an optional big-endian play counter of at least four bytes.
func ParsePOPM(b []byte) (*Popularimeter, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return nil, fmt.Errorf("POPM frame without email terminator")
	}
	if len(b) < i+2 {
		return nil, fmt.Errorf("POPM frame without rating byte")
	}

	p := &Popularimeter{Email: string(b[:i]), Rating: b[i+1]}

	counter := b[i+2:]
	if len(counter) == 0 {
		return p, nil
	}
	if len(counter) > 8 {
		return nil, fmt.Errorf("POPM counter of %d bytes overflows", len(counter))
	}

	for _, c := range counter {
		p.Counter = p.Counter<<8 | int64(c)
	}
	p.HasCounter = true
	return p, nil
}

// Rating100 maps the POPM rating byte to the 0-100 scale using the usual
// five-star thresholds. ok is false for an unrated frame.
func (p *Popularimeter) Rating100() (int64, bool) {
	switch r := p.Rating; {
	case r == 0:
		return 0, false
	case r < 32:
		return 20, true
	case r < 96:
		return 40, true
	case r < 160:
		return 60, true
	case r < 224:
		return 80, true
	default:
		return 100, true
	}
}
