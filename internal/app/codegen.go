package app

import (
	gonanoid "github.com/jaevor/go-nanoid"

	"github.com/dkeye/Hangout/internal/domain"
)

var nextRoomCode = mustCodeGenerator()

func mustCodeGenerator() func() string {
	gen, err := gonanoid.CustomASCII(domain.RoomCodeAlphabet, domain.RoomCodeLen)
	if err != nil {
		panic(err)
	}
	return gen
}

// NewRoomCode returns a random code drawn from domain.RoomCodeAlphabet.
func NewRoomCode() (domain.RoomCode, error) {
	return domain.RoomCode(nextRoomCode()), nil
}
