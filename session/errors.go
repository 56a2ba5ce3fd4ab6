package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks
var (
	ErrDuplicateName = errors.New("session name already exists")
	ErrNotFound      = errors.New("session not found")
	ErrNoSessions    = errors.New("no sessions registered")
	ErrAmbiguous     = errors.New("more than one session registered")
)

// ManagementError reports a registry misuse. Message is suitable for end users.
type ManagementError struct {
	Op      string
	Name    string
	Message string
	Err     error
}

func (e *ManagementError) Error() string {
	return e.Message
}

func (e *ManagementError) Unwrap() error {
	return e.Err
}

func newDuplicateError(name string) error {
	return &ManagementError{
		Op:      "add",
		Name:    name,
		Message: fmt.Sprintf("Session with name '%s' already exists. Please delete the session first if you intend to replace it.", name),
		Err:     ErrDuplicateName,
	}
}

func newNotFoundError(op, name string, names []string) error {
	return &ManagementError{
		Op:      op,
		Name:    name,
		Message: fmt.Sprintf("Could not find '%s' session in list of saved sessions. Possible sessions are %s", name, formatNames(names)),
		Err:     ErrNotFound,
	}
}

func newNoSessionsError() error {
	return &ManagementError{
		Op:      "get_any",
		Message: "You need to have at least 1 client created to execute commands.",
		Err:     ErrNoSessions,
	}
}

func newAmbiguousError(names []string) error {
	return &ManagementError{
		Op:      "get_any",
		Message: fmt.Sprintf("Please specify the client to use. Possible sessions are %s", formatNames(names)),
		Err:     ErrAmbiguous,
	}
}

func newDeleteError(name string, err error) error {
	return &ManagementError{
		Op:      "delete",
		Name:    name,
		Message: fmt.Sprintf("Could not delete session '%s': %v", name, err),
		Err:     err,
	}
}

func formatNames(names []string) string {
	return fmt.Sprintf("%q", names)
}
