package app

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewRoomCode returns a random six character room code.
func NewRoomCode() string {
	var sb strings.Builder
	sb.Grow(roomCodeLength)
	limit := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(err)
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String()
}

// NormalizeRoomCode maps user input onto the stored code form.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
