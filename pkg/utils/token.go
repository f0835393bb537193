package utils

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

// GenerateURLToken returns a URL-safe random token. n is the number of
// random bytes; the encoded string is about 4/3*n characters.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// RawURLEncoding avoids '=' padding and '+' '/' characters
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// inviteAlphabet omits 0/O and 1/I so codes can be read aloud.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateInviteCode returns a short human-shareable workspace invite code.
func GenerateInviteCode(length int) (string, error) {
	if length <= 0 {
		length = 8
	}
	code := make([]byte, length)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteAlphabet[idx.Int64()]
	}
	return string(code), nil
}
