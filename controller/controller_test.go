package controller

import (
	"strings"
	"testing"

	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/prompt"
	"github.com/archon-installer/archon/session"
	"github.com/archon-installer/archon/stages"
	"github.com/archon-installer/archon/types"
)

func boolPtr(v bool) *bool { return &v }

func newHarness(fw types.FirmwareMode) (*Controller, *session.Session, *prompt.Script, *executor.FakeRunner) {
	s := session.New(fw, "/var/log/archon/install-20260826-120000.log")
	script := &prompt.Script{}
	run := executor.NewFakeRunner()
	deps := &stages.Deps{
		Session: s,
		Run:     run,
		Chroot:  executor.NewFakeRunner(),
		Prompt:  script,
		RAM:     func() (int64, error) { return 4 << 30, nil },
		Vendor:  func() (types.CPUVendor, error) { return types.VendorUnknown, nil },
		Log:     types.NewNullLogger(),
	}
	return New(s, deps, script, run, types.NewNullLogger()), s, script, run
}

func TestExitLeavesTargetMounted(t *testing.T) {
	c, _, script, run := newHarness(types.FirmwareUEFI)
	script.Selections = []string{"Exit"}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Called("umount") {
		t.Error("exit must not unmount the target")
	}
}

func TestUnknownSelectionIsRecoverable(t *testing.T) {
	c, _, script, _ := newHarness(types.FirmwareUEFI)
	script.Selections = []string{"make me a sandwich", "Exit"}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(script.Warnings) != 1 || !strings.Contains(script.Warnings[0], "unknown selection") {
		t.Errorf("expected one unknown-selection warning, got %v", script.Warnings)
	}
}

func TestGatedStageWarnsAndReturnsToMenu(t *testing.T) {
	c, s, script, run := newHarness(types.FirmwareUEFI)
	script.Selections = []string{"[ ] Install base system", "Exit"}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(script.Warnings) != 1 || !strings.Contains(script.Warnings[0], "not mounted") {
		t.Errorf("expected a precondition warning, got %v", script.Warnings)
	}
	if run.Called("pacstrap") {
		t.Error("gated stage must not reach its collaborators")
	}
	if s.Completed(session.StageBaseInstall) {
		t.Error("gated stage must not be marked complete")
	}
}

func TestStageSuccessIsRecorded(t *testing.T) {
	c, s, script, run := newHarness(types.FirmwareUEFI)
	script.Selections = []string{"[ ] Keyboard layout", "Exit"}
	script.Inputs = []string{"de-latin1"}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run.Called("loadkeys de-latin1") {
		t.Error("keyboard stage did not run")
	}
	if !s.Completed(session.StageKeyboard) {
		t.Error("successful stage must be marked complete")
	}
	if len(script.Said) != 1 || !strings.Contains(script.Said[0], "completed") {
		t.Errorf("expected a completion notice, got %v", script.Said)
	}
}

func TestStageFailureIsRecordedAndSurvivable(t *testing.T) {
	c, s, script, run := newHarness(types.FirmwareUEFI)
	s.RootMounted = true
	s.Config.BaseDevel = boolPtr(false)
	s.Config.WifiTools = boolPtr(false)
	run.Fail("pacstrap", 1, "no mirrors")
	script.Selections = []string{"[ ] Install base system", "Exit"}

	if err := c.Run(); err != nil {
		t.Fatalf("a failed stage must return to the menu, got: %v", err)
	}
	if s.Completed(session.StageBaseInstall) {
		t.Error("failed stage must not be marked complete")
	}
	if len(script.Warnings) != 1 || !strings.Contains(script.Warnings[0], "failed") {
		t.Errorf("expected a failure warning, got %v", script.Warnings)
	}
}

func TestAbortedStageIsNeitherCompleteNorWarned(t *testing.T) {
	c, s, script, run := newHarness(types.FirmwareUEFI)
	s.Config.TargetDisk = "/dev/sda"
	// Decline the destruction confirmation.
	script.Confirms = []bool{false}
	script.Selections = []string{"[ ] Partition disk", "Exit"}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Completed(session.StagePartitioning) {
		t.Error("aborted stage must not be marked complete")
	}
	if len(script.Warnings) != 0 {
		t.Errorf("an operator abort is not a failure, got warnings %v", script.Warnings)
	}
	if run.Called("wipefs") {
		t.Error("aborted partitioning must not touch the disk")
	}
}

func TestFinishBeforeBootloaderWarns(t *testing.T) {
	c, _, script, run := newHarness(types.FirmwareUEFI)
	script.Selections = []string{"Finish installation", "Exit"}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(script.Warnings) != 1 || !strings.Contains(script.Warnings[0], "bootloader") {
		t.Errorf("expected a bootloader warning, got %v", script.Warnings)
	}
	if run.Called("umount") {
		t.Error("finish must not unmount before the bootloader stage completes")
	}
}

func TestFinishAfterBootloaderUnmounts(t *testing.T) {
	c, s, script, run := newHarness(types.FirmwareUEFI)
	s.MarkComplete(session.StageBootloader)
	script.Selections = []string{"Finish installation"}
	script.Confirms = []bool{true}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run.Called("umount -R /mnt") {
		t.Error("finish must recursively unmount the target tree")
	}
	if len(script.Said) != 1 || !strings.Contains(script.Said[0], "finished") {
		t.Errorf("expected a finish notice, got %v", script.Said)
	}
}

func TestDeclinedFinishReturnsToMenu(t *testing.T) {
	c, s, script, run := newHarness(types.FirmwareUEFI)
	s.MarkComplete(session.StageBootloader)
	script.Selections = []string{"Finish installation", "Exit"}
	script.Confirms = []bool{false}

	if err := c.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Called("umount") {
		t.Error("declined finish must not unmount")
	}
}

func TestMenuReflectsProgress(t *testing.T) {
	c, s, _, _ := newHarness(types.FirmwareUEFI)
	s.MarkComplete(session.StageKeyboard)

	items, byLabel := c.menuItems()
	if len(items) != len(session.AllStages())+2 {
		t.Fatalf("expected every stage plus finish and exit, got %d items", len(items))
	}
	if items[0] != "[x] Keyboard layout" {
		t.Errorf("completed stage not marked: %q", items[0])
	}
	if items[1] != "[ ] Network" {
		t.Errorf("pending stage wrongly marked: %q", items[1])
	}
	if byLabel[items[0]] != session.StageKeyboard {
		t.Errorf("label %q resolves to %q", items[0], byLabel[items[0]])
	}
}
