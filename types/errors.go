package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPrivilege is fatal at startup: the installer was started without root.
var ErrPrivilege = errors.New("this installer must be run as root")

// ErrAborted marks an operator-declined confirmation. The stage is not
// attempted and not marked failed in any alarming way.
var ErrAborted = errors.New("aborted by operator")

// ValidationError is malformed operator input. Never fatal, the owning stage
// re-prompts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PreconditionError means a stage was selected before the stages it depends
// on have succeeded. The stage is not attempted.
type PreconditionError struct {
	Stage  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s cannot run yet: %s", e.Stage, e.Reason)
}

// CollaboratorError is a non-zero exit from an external command. Whether it
// is fatal to the stage is the caller's policy.
type CollaboratorError struct {
	Command  []string
	ExitCode int
	Output   string
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s exited %d: %s", strings.Join(e.Command, " "), e.ExitCode, strings.TrimSpace(e.Output))
}
