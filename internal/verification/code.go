package verification

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const CodeLength = 6

// NewCode returns a CodeLength digit numeric code read from crypto/rand.
// Leading zeros are kept.
func NewCode() (string, error) {
	return NewCodeFrom(rand.Reader)
}

// NewCodeFrom draws digits from r, rejecting bytes >= 250 so every digit is
// uniform over 0-9.
func NewCodeFrom(r io.Reader) (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)

	for len(code) < CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			code = append(code, '0'+b%10)
			if len(code) == CodeLength {
				break
			}
		}
	}

	return string(code), nil
}

// NewID returns a random verification identifier unrelated to the user id.
func NewID() string {
	return uuid.NewString()
}
