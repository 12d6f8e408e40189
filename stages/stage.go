// Package stages implements the eight installation stages. Each stage is a
// bounded unit of work over the session and its collaborators; it reports
// success or failure and never touches another stage's state.
package stages

import (
	"fmt"
	"path/filepath"
	"time"

	vfs "github.com/twpayne/go-vfs/v4"

	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/prompt"
	"github.com/archon-installer/archon/session"
	"github.com/archon-installer/archon/types"
)

// Materializer is the slice of the layout package a stage needs.
type Materializer interface {
	Materialize(types.DiskLayout) error
}

// Deps bundles the collaborators handed to every stage. Run executes on the
// live system, Chroot inside the mounted target tree.
type Deps struct {
	Session *session.Session
	Run     executor.Runner
	Chroot  executor.Runner
	Prompt  prompt.Prompter
	FS      vfs.FS
	Mat     Materializer
	RAM     func() (int64, error)
	Vendor  func() (types.CPUVendor, error)
	Log     types.SessionLogger

	// LeaseGrace is how long to wait after requesting a DHCP lease before
	// re-probing connectivity. A bounded wait, not a poll.
	LeaseGrace time.Duration
}

// StageFunc runs one stage to completion or explicit failure.
type StageFunc func(*Deps) error

// ForID maps a stage identity to its executor.
func ForID(id session.StageID) StageFunc {
	switch id {
	case session.StageKeyboard:
		return Keyboard
	case session.StageNetwork:
		return Network
	case session.StagePartitioning:
		return Partition
	case session.StageBaseInstall:
		return BaseInstall
	case session.StageConfigure:
		return Configure
	case session.StageUsers:
		return Users
	case session.StagePackages:
		return Packages
	case session.StageBootloader:
		return Bootloader
	}
	return func(*Deps) error {
		return fmt.Errorf("unknown stage %q", id)
	}
}

// target joins path elements under the session mount root.
func (d *Deps) target(elem ...string) string {
	return filepath.Join(append([]string{d.Session.MountRoot}, elem...)...)
}

// mustRun executes a collaborator command and turns a non-zero exit into a
// hard stage error naming the sub-step.
func mustRun(r executor.Runner, step, name string, args ...string) error {
	res, err := r.Run(name, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: %w", step, &types.CollaboratorError{
			Command:  append([]string{name}, args...),
			ExitCode: res.ExitCode,
			Output:   res.Stderr,
		})
	}
	return nil
}

// askBool fills a toggle from a prompt the first time its owning stage runs.
func askBool(d *Deps, label string, def bool, dst **bool) error {
	if *dst != nil {
		return nil
	}
	v, err := d.Prompt.Confirm(label, def)
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}
