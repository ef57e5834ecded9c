package game

import (
	"math/rand"
	"strings"
)

const codeLength = 6

// codeAlphabet omits characters that read ambiguously on a projected lobby
// screen (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// deriveCode builds the preferred room code from the trailing characters of
// the quiz id, uppercased.
func deriveCode(quizID string) string {
	runes := []rune(quizID)
	if len(runes) > codeLength {
		runes = runes[len(runes)-codeLength:]
	}
	return strings.ToUpper(string(runes))
}

// randomCode generates a fallback code when the derived one collides.
func randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
