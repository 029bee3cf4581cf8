package lobby

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
)

const (
	// CodeChars leaves out characters that are easy to confuse when read aloud.
	CodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	MinCodeLength     = 4
	MaxCodeLength     = 6
	DefaultCodeLength = 6

	maxCodeAttempts = 64
)

// CodeFunc produces a candidate room code of the given length.
type CodeFunc func(length int) string

// GenerateCode returns a uniformly random room code.
func GenerateCode(length int) string {
	code := make([]byte, length)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(CodeChars))))
		if err != nil {
			code[i] = CodeChars[rand.Intn(len(CodeChars))]
			continue
		}
		code[i] = CodeChars[n.Int64()]
	}
	return string(code)
}

// ValidCode reports whether code could have been issued by GenerateCode.
func ValidCode(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
