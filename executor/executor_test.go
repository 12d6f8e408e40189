package executor_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/types"
)

func newExec(t *testing.T) (*executor.Exec, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	log := types.NewBufferLogger(buf)
	return executor.New(log), buf
}

func TestRunCapturesExitCode(t *testing.T) {
	e, _ := newExec(t)
	res, err := e.Run("sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("unexpected spawn error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout: got %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr: got %q", res.Stderr)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	e, _ := newExec(t)
	_, err := e.Run("/nonexistent-collaborator-tool")
	if err == nil {
		t.Fatal("expected spawn error")
	}
}

func TestRunWithInput(t *testing.T) {
	e, _ := newExec(t)
	res, err := e.RunWithInput("hello\n", "cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("stdout: got %q", res.Stdout)
	}
}

func TestQueryTrimsAndRejectsFailure(t *testing.T) {
	e, _ := newExec(t)
	out, err := e.Query("sh", "-c", "echo '  value  '")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "value" {
		t.Errorf("got %q, want %q", out, "value")
	}

	_, err = e.Query("sh", "-c", "exit 1")
	if err == nil {
		t.Fatal("expected error for non-zero query")
	}
	var cerr *types.CollaboratorError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CollaboratorError, got %T", err)
	}
	if cerr.ExitCode != 1 {
		t.Errorf("exit code: got %d, want 1", cerr.ExitCode)
	}
}

func TestSHSplitsLikeAShell(t *testing.T) {
	e, _ := newExec(t)
	out, err := e.SH(`echo "two words"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "two words" {
		t.Errorf("got %q", out)
	}
}

func TestTranscriptReceivesInvocation(t *testing.T) {
	e, buf := newExec(t)
	if _, err := e.Run("sh", "-c", "true"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "sh -c true") {
		t.Errorf("transcript missing invocation: %s", buf.String())
	}
}

func TestTranscriptReceivesCapturedOutputAtDefaultLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := types.NewBufferLogger(buf)
	log.SetLevel("info")
	e := executor.New(log)

	if _, err := e.Run("sh", "-c", "echo formatting-done; echo device-busy >&2; exit 1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"formatting-done", "device-busy"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("transcript missing captured output %q: %s", want, buf.String())
		}
	}
}
