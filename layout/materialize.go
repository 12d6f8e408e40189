package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	mount "k8s.io/mount-utils"

	"github.com/archon-installer/archon/constants"
	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/types"
)

// Materializer turns a computed layout into real partitions, filesystems and
// mounts. It fails fast and names the sub-step that broke; it never attempts
// a partial rollback, a failed run leaves the disk in a state the operator
// must explicitly re-wipe.
type Materializer struct {
	run       executor.Runner
	mounter   mount.Interface
	log       types.SessionLogger
	mountRoot string

	// stat is swappable so tests can fabricate device nodes.
	stat func(string) (os.FileInfo, error)
}

func NewMaterializer(run executor.Runner, mounter mount.Interface, log types.SessionLogger, mountRoot string) *Materializer {
	return &Materializer{
		run:       run,
		mounter:   mounter,
		log:       log,
		mountRoot: mountRoot,
		stat:      os.Stat,
	}
}

func (m *Materializer) mustRun(step string, name string, args ...string) error {
	res, err := m.run.Run(name, args...)
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

// Materialize wipes the target disk, writes the planned table, formats every
// partition and mounts ROOT (then EFI, when present) under the mount root.
func (m *Materializer) Materialize(l types.DiskLayout) error {
	log := m.log.Logger.With().Str("disk", l.TargetDisk).Logger()
	log.Info().Str("table", string(l.Table)).Msg("Materializing disk layout")

	if err := m.wipe(l); err != nil {
		return err
	}
	if err := m.partition(l); err != nil {
		return err
	}
	if err := m.settle(l); err != nil {
		return err
	}
	if err := m.format(l); err != nil {
		return err
	}
	if err := m.mount(l); err != nil {
		return err
	}
	log.Info().Msg("Disk layout materialized")
	return nil
}

func (m *Materializer) wipe(l types.DiskLayout) error {
	if err := m.mustRun("wiping signatures", "wipefs", "-a", l.TargetDisk); err != nil {
		return err
	}
	return m.mustRun("zeroing partition table", "sgdisk", "--zap-all", l.TargetDisk)
}

func (m *Materializer) partition(l types.DiskLayout) error {
	if l.Table == types.TableGPT {
		return m.partitionGPT(l)
	}
	return m.partitionDOS(l)
}

func (m *Materializer) partitionGPT(l types.DiskLayout) error {
	typeCodes := map[types.PartitionRole]string{
		types.RoleEFI:  "ef00",
		types.RoleSwap: "8200",
		types.RoleRoot: "8300",
	}
	for _, p := range l.Partitions {
		end := fmt.Sprintf("+%dM", p.SizeMiB)
		if p.SizeMiB == 0 {
			end = "0"
		}
		step := fmt.Sprintf("creating %s partition", p.Role)
		err := m.mustRun(step, "sgdisk",
			"-n", fmt.Sprintf("%d:0:%s", p.Number, end),
			"-t", fmt.Sprintf("%d:%s", p.Number, typeCodes[p.Role]),
			l.TargetDisk)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Materializer) partitionDOS(l types.DiskLayout) error {
	var script strings.Builder
	script.WriteString("label: dos\n")
	for _, p := range l.Partitions {
		switch {
		case p.Role == types.RoleSwap:
			fmt.Fprintf(&script, "size=%dMiB, type=82\n", p.SizeMiB)
		case p.SizeMiB == 0:
			script.WriteString("type=83, bootable\n")
		default:
			fmt.Fprintf(&script, "size=%dMiB, type=83\n", p.SizeMiB)
		}
	}
	res, err := m.run.RunWithInput(script.String(), "sfdisk", l.TargetDisk)
	if err != nil {
		return fmt.Errorf("writing partition table: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("writing partition table: %w", &types.CollaboratorError{
			Command:  []string{"sfdisk", l.TargetDisk},
			ExitCode: res.ExitCode,
			Output:   res.Stderr,
		})
	}
	return nil
}

// settle waits until the kernel exposes every planned partition node.
func (m *Materializer) settle(l types.DiskLayout) error {
	if err := m.mustRun("rereading partition table", "partprobe", l.TargetDisk); err != nil {
		return err
	}
	err := retry.Do(
		func() error {
			if _, err := m.run.SH("udevadm settle"); err != nil {
				return err
			}
			for _, p := range l.Partitions {
				if _, err := m.stat(p.Device); err != nil {
					return fmt.Errorf("%s not present yet", p.Device)
				}
			}
			return nil
		},
		retry.Attempts(10),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return fmt.Errorf("waiting for partition nodes: %w", err)
	}
	return nil
}

func (m *Materializer) format(l types.DiskLayout) error {
	for _, p := range l.Partitions {
		switch p.Role {
		case types.RoleEFI:
			if err := m.mustRun("formatting EFI partition", "mkfs.fat", "-F32", p.Device); err != nil {
				return err
			}
		case types.RoleSwap:
			if err := m.mustRun("formatting swap", "mkswap", p.Device); err != nil {
				return err
			}
			if err := m.mustRun("enabling swap", "swapon", p.Device); err != nil {
				return err
			}
		case types.RoleRoot:
			argv := l.RootFilesystem.MkfsArgs(p.Device)
			if err := m.mustRun("formatting root filesystem", argv[0], argv[1:]...); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Materializer) mount(l types.DiskLayout) error {
	root := l.Root()
	if err := m.mounter.Mount(root.Device, m.mountRoot, string(l.RootFilesystem), nil); err != nil {
		return fmt.Errorf("mounting root: %w", err)
	}
	if efi := l.EFI(); efi != nil {
		espDir := filepath.Join(m.mountRoot, constants.BootDir)
		if err := os.MkdirAll(espDir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", espDir, err)
		}
		if err := m.mounter.Mount(efi.Device, espDir, "vfat", nil); err != nil {
			return fmt.Errorf("mounting EFI partition: %w", err)
		}
	}
	return nil
}
