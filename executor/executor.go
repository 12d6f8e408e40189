// Package executor invokes external system utilities on behalf of the
// installation stages. Every invocation, along with everything it prints, is
// appended to the session transcript. Failures are values: a non-zero exit
// never terminates the process, the calling stage decides whether it is
// fatal.
package executor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/archon-installer/archon/types"
)

// Result is the captured outcome of one collaborator command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner is what the stages program against. The production implementation
// is Exec; tests use FakeRunner.
type Runner interface {
	// Run executes a command and captures its output. The error is non-nil
	// only when the command could not be spawned at all.
	Run(name string, args ...string) (Result, error)
	// RunWithInput is Run with the given string fed to stdin.
	RunWithInput(stdin, name string, args ...string) (Result, error)
	// RunInteractive inherits the live terminal, for commands that need one.
	// Nothing is captured.
	RunInteractive(name string, args ...string) error
	// Query runs a read-only introspection command and returns its trimmed
	// stdout. A non-zero exit is an error here.
	Query(name string, args ...string) (string, error)
	// SH runs a full command line, shlex-split, and returns combined output.
	SH(cmdline string) (string, error)
}

// Exec is the real Runner. With a chroot set, every command goes through
// arch-chroot into the mounted target tree.
type Exec struct {
	log    types.SessionLogger
	chroot string
}

func New(log types.SessionLogger) *Exec {
	return &Exec{log: log}
}

// Chroot returns a runner executing inside root via arch-chroot.
func (e *Exec) Chroot(root string) *Exec {
	return &Exec{log: e.log, chroot: root}
}

func (e *Exec) argv(name string, args []string) []string {
	if e.chroot == "" {
		return append([]string{name}, args...)
	}
	return append([]string{"arch-chroot", e.chroot, name}, args...)
}

func (e *Exec) run(stdin string, name string, args ...string) (Result, error) {
	argv := e.argv(name, args)
	cmd := exec.Command(argv[0], argv[1:]...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	e.log.Logger.Info().Str("cmd", strings.Join(argv, " ")).Msg("exec")
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			e.log.Logger.Error().Err(err).Str("cmd", argv[0]).Msg("spawn failed")
			return res, fmt.Errorf("running %s: %w", argv[0], err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	// The transcript must carry everything the command printed, so the
	// captured output goes out at the default level, not behind debug.
	e.log.Logger.Info().
		Int("exit", res.ExitCode).
		Str("stdout", res.Stdout).
		Str("stderr", res.Stderr).
		Msg(strings.Join(argv, " "))
	return res, nil
}

func (e *Exec) Run(name string, args ...string) (Result, error) {
	return e.run("", name, args...)
}

func (e *Exec) RunWithInput(stdin, name string, args ...string) (Result, error) {
	return e.run(stdin, name, args...)
}

func (e *Exec) RunInteractive(name string, args ...string) error {
	argv := e.argv(name, args)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	e.log.Logger.Info().Str("cmd", strings.Join(argv, " ")).Msg("exec interactive")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", argv[0], err)
	}
	return nil
}

func (e *Exec) Query(name string, args ...string) (string, error) {
	res, err := e.Run(name, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &types.CollaboratorError{
			Command:  e.argv(name, args),
			ExitCode: res.ExitCode,
			Output:   res.Stderr,
		}
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (e *Exec) SH(cmdline string) (string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return "", fmt.Errorf("splitting %q: %w", cmdline, err)
	}
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command line")
	}
	res, err := e.Run(argv[0], argv[1:]...)
	out := res.Stdout + res.Stderr
	if err != nil {
		return out, err
	}
	if res.ExitCode != 0 {
		return out, &types.CollaboratorError{
			Command:  e.argv(argv[0], argv[1:]),
			ExitCode: res.ExitCode,
			Output:   out,
		}
	}
	return out, nil
}
