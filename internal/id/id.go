package id

import (
	"strings"

	"github.com/google/uuid"
)

func New() string {
	return uuid.NewString()
}

// Valid reports whether s looks like an id produced by New.
func Valid(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
