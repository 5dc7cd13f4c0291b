package client

import (
	"errors"
	"fmt"
)

// Exit conditions of a client process.
var (
	ErrUsage          = errors.New("usage error")
	ErrCommunications = errors.New("communications error")
	ErrKicked         = errors.New("kicked")
	ErrAuthentication = errors.New("authentication error")
)

// Exit codes reported by the client binary.
const (
	ExitNormal         = 0
	ExitUsage          = 1
	ExitCommunications = 2
	ExitKicked         = 3
	ExitAuthentication = 4
)

// ExitCode maps the error returned by Run (or argument handling) to a process
// exit code. Unknown errors count as communications failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitNormal
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, ErrKicked):
		return ExitKicked
	case errors.Is(err, ErrAuthentication):
		return ExitAuthentication
	default:
		return ExitCommunications
	}
}

// ExitMessage is the line printed to stderr for err, or "" on a normal exit.
func ExitMessage(err error) string {
	switch ExitCode(err) {
	case ExitUsage:
		return "Usage: client name authfile port"
	case ExitKicked:
		return "Kicked"
	case ExitAuthentication:
		return "Authentication error"
	case ExitCommunications:
		return "Communications error"
	default:
		return ""
	}
}

func commsError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCommunications, op, err)
}
