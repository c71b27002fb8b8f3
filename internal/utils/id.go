package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// IDLength is the length of every token, message id and client uuid.
const IDLength = 16

// RandomAlphanumeric returns n characters drawn uniformly from [A-Za-z0-9].
func RandomAlphanumeric(n int) string {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(alphanumeric)))
	for range n {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic("utils: crypto/rand unavailable: " + err.Error())
		}
		b.WriteByte(alphanumeric[idx.Int64()])
	}
	return b.String()
}

// NewToken returns a fresh client token.
func NewToken() string {
	return RandomAlphanumeric(IDLength)
}

// NewMessageID returns a fresh message id.
func NewMessageID() string {
	return RandomAlphanumeric(IDLength)
}

// NewClientUUID returns a client uuid of the form "xxx-xxx-xxx-xxx-".
func NewClientUUID() string {
	var b strings.Builder
	b.Grow(IDLength)
	for range 4 {
		b.WriteString(RandomAlphanumeric(3))
		b.WriteByte('-')
	}
	return b.String()
}
