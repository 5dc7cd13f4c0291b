package core

import "errors"

// Error codes for registry rejections, used in logs.
const (
	ErrCodeNameTaken = "name_taken"
	ErrCodeEmptyName = "empty_name"
)

var (
	// ErrNameTaken means another session already holds the name.
	ErrNameTaken = errors.New("name taken")
	// ErrEmptyName means the proposed name was empty.
	ErrEmptyName = errors.New("empty name")
	// ErrAlreadyNamed means Register was called twice for one session.
	ErrAlreadyNamed = errors.New("session already named")
	// ErrNotRegistered means the acting session is no longer in the registry.
	ErrNotRegistered = errors.New("session not registered")
)

// Code maps a registry error onto its code, or "" for other errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNameTaken):
		return ErrCodeNameTaken
	case errors.Is(err, ErrEmptyName):
		return ErrCodeEmptyName
	default:
		return ""
	}
}
