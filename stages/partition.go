package stages

import (
	"fmt"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/archon-installer/archon/layout"
	"github.com/archon-installer/archon/types"
)

// Partition plans and materializes the disk layout. Materialize is
// destructive and not resumable, so it sits behind a double confirmation:
// a yes/no and the disk name typed back.
func Partition(d *Deps) error {
	cfg := &d.Session.Config

	disk := cfg.TargetDisk
	if disk == "" {
		disks, err := layout.ListCandidateDisks(d.Run)
		if err != nil {
			return err
		}
		if len(disks) == 0 {
			return fmt.Errorf("no candidate disks found")
		}
		var opts []string
		for _, di := range disks {
			opts = append(opts, fmt.Sprintf("%s (%s)", di.Device, di.Size))
		}
		choice, err := d.Prompt.Select("Target disk", opts)
		if err != nil {
			return err
		}
		disk = strings.Fields(choice)[0]
	}

	if err := confirmDestruction(d, disk); err != nil {
		return err
	}
	cfg.TargetDisk = disk

	if cfg.SwapSize == "" {
		v, err := d.Prompt.Input("Swap size (auto or <n>[M|G])", "auto")
		if err != nil {
			return err
		}
		cfg.SwapSize = v
	}
	if cfg.RootFilesystem == "" {
		var opts []string
		for _, fs := range types.Filesystems() {
			opts = append(opts, string(fs))
		}
		choice, err := d.Prompt.Select("Root filesystem", opts)
		if err != nil {
			return err
		}
		fs, err := types.ParseFilesystem(choice)
		if err != nil {
			return err
		}
		cfg.RootFilesystem = fs
	}

	ram, err := d.RAM()
	if err != nil {
		return fmt.Errorf("querying RAM size: %w", err)
	}
	swap, err := layout.ComputeSwapSize(ram, cfg.SwapSize)
	if err != nil {
		// Bad swap spec: clear it so the next run prompts again.
		cfg.SwapSize = ""
		return err
	}

	plan := layout.PlanLayout(disk, d.Session.Firmware, swap, cfg.RootFilesystem)
	if err := d.Mat.Materialize(plan); err != nil {
		return err
	}

	s := d.Session
	s.RootPartition = plan.Root().Device
	s.SwapPartition = plan.Swap().Device
	if efi := plan.EFI(); efi != nil {
		s.EFIPartition = efi.Device
	}
	s.RootMounted = true

	// The bootloader stage needs the root filesystem UUID later.
	raw, err := d.Run.Query("blkid", "-s", "UUID", "-o", "value", s.RootPartition)
	if err != nil {
		return fmt.Errorf("reading root filesystem UUID: %w", err)
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return fmt.Errorf("blkid reported %q for %s: %w", raw, s.RootPartition, err)
	}
	s.RootUUID = id.String()

	d.Log.Infof("partitioned %s, root %s (%s)", disk, s.RootPartition, s.RootUUID)
	return nil
}

// confirmDestruction is the first-class gate in front of Materialize.
func confirmDestruction(d *Deps, disk string) error {
	ok, err := d.Prompt.Confirm(fmt.Sprintf("ALL data on %s will be destroyed. Continue?", disk), false)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrAborted
	}
	typed, err := d.Prompt.Input(fmt.Sprintf("Type %s to confirm", disk), "")
	if err != nil {
		return err
	}
	if typed != disk {
		d.Prompt.Warn("disk name does not match, nothing was touched")
		return types.ErrAborted
	}
	return nil
}
