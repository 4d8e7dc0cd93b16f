package csrf

import (
	"crypto/rand"
	"fmt"
	"io"
)

// RandomSource supplies token entropy. Production code uses CryptoSource;
// tests inject deterministic byte sequences.
type RandomSource interface {
	Read(p []byte) (n int, err error)
}

// CryptoSource returns the platform's cryptographically secure generator.
func CryptoSource() RandomSource {
	return rand.Reader
}

// readToken fills a TokenBytes buffer from src. A short or failed read means
// no secure entropy is available, which is unrecoverable.
func readToken(src RandomSource) []byte {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(src, buf); err != nil {
		panic(fmt.Errorf("csrf: secure random source failed: %w", err))
	}
	return buf
}
