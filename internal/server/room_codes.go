package server

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// GenerateRoomCode returns a 6 character code that is not already in use.
// Codes are the first 6 hex characters of a v4 UUID, uppercased, so they
// stay short enough to read out loud while colliding rarely; the usedCodes
// check retries the unlucky case.
func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		roomCode := strings.ToUpper(uuid.New().String()[:6])

		if !usedCodes[roomCode] {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != 6 {
		return errors.New("INVALID_ROOM_CODE: Room code must be exactly 6 characters")
	}

	code = strings.ToUpper(code)
	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return errors.New("INVALID_ROOM_CODE: Room code must contain only letters and digits")
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
