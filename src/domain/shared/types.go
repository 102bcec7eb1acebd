package shared

import (
	"errors"
	"strconv"
	"strings"
)

// ID types keep domain values distinct while remaining simple scalars at runtime.
type (
	ScoreID    int64
	PlayerName string
)

// Validate ensures the player name is not blank.
func (name PlayerName) Validate() error {
	if strings.TrimSpace(string(name)) == "" {
		return errors.New("player name is required")
	}
	return nil
}

func (id ScoreID) Validate() error {
	if id <= 0 {
		return errors.New("score id must be positive")
	}
	return nil
}

func (id ScoreID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
