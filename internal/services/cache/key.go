package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/praxislearn/curricula/internal/models"
)

// Key derives the exact-cache key from the normalized query plus the last
// historyWindow turns. Two requests that differ only in whitespace or letter
// case hit the same entry.
func Key(req *models.SynthesisRequest, historyWindow int) string {
	h := sha256.New()

	h.Write([]byte(normalize(req.Query)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(req.SystemInstruction)))
	h.Write([]byte{0})

	history := req.History
	if historyWindow > 0 && len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, turn := range history {
		h.Write([]byte(turn.Role))
		h.Write([]byte{0})
		h.Write([]byte(normalize(turn.Content)))
		h.Write([]byte{0})
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
