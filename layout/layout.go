// Package layout computes and materializes disk layouts: partition planning,
// swap sizing and device node naming are pure; Materialize is the only
// impure entry point.
package layout

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/archon-installer/archon/constants"
	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/types"
)

var swapSpecRe = regexp.MustCompile(`^([1-9]\d*)([MG])$`)

// ComputeSwapSize returns the swap partition size in bytes. An explicit
// override always wins; the literal "auto" (or an empty override) falls back
// to the RAM-derived policy:
//
//	RAM < 2 GiB          -> 2 x RAM
//	2 GiB <= RAM < 8 GiB -> RAM
//	RAM >= 8 GiB         -> RAM / 2
func ComputeSwapSize(ramBytes int64, override string) (int64, error) {
	override = strings.TrimSpace(override)
	if override != "" && override != "auto" {
		m := swapSpecRe.FindStringSubmatch(override)
		if m == nil {
			return 0, &types.ValidationError{
				Field:  "swap size",
				Reason: fmt.Sprintf("%q is not auto or <n>[M|G]", override),
			}
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, &types.ValidationError{Field: "swap size", Reason: err.Error()}
		}
		if m[2] == "G" {
			return n * constants.GiB, nil
		}
		return n * constants.MiB, nil
	}

	switch {
	case ramBytes < 2*constants.GiB:
		return 2 * ramBytes, nil
	case ramBytes < 8*constants.GiB:
		return ramBytes, nil
	default:
		return ramBytes / 2, nil
	}
}

// needsPartitionSeparator reports whether the disk's naming scheme inserts a
// "p" between disk name and partition number (NVMe and MMC style devices).
func needsPartitionSeparator(disk string) bool {
	base := path.Base(disk)
	return strings.Contains(base, "nvme") || strings.HasPrefix(base, "mmcblk")
}

// PartitionPrefix returns the string partition numbers are appended to for
// this disk. Computed once per target disk so every derived name agrees.
func PartitionPrefix(disk string) string {
	if needsPartitionSeparator(disk) {
		return disk + "p"
	}
	return disk
}

// PartitionName returns the device node of the n-th partition on disk.
func PartitionName(disk string, n int) string {
	return fmt.Sprintf("%s%d", PartitionPrefix(disk), n)
}

// PlanLayout computes the partition plan for one disk. Pure, no I/O. Under
// UEFI the table is GPT with EFI=1, SWAP=2, ROOT=3; under BIOS it is a DOS
// table with SWAP=1, ROOT=2. ROOT always spans the remaining space.
func PlanLayout(disk string, fw types.FirmwareMode, swapBytes int64, rootFS types.Filesystem) types.DiskLayout {
	l := types.DiskLayout{
		TargetDisk:      disk,
		PartitionPrefix: PartitionPrefix(disk),
		SwapBytes:       swapBytes,
		RootFilesystem:  rootFS,
		Table:           types.TableDOS,
	}
	if fw == types.FirmwareUEFI {
		l.Table = types.TableGPT
	}

	n := 1
	add := func(role types.PartitionRole, sizeMiB int64) {
		l.Partitions = append(l.Partitions, types.PlannedPartition{
			Role:    role,
			Number:  n,
			Device:  fmt.Sprintf("%s%d", l.PartitionPrefix, n),
			SizeMiB: sizeMiB,
		})
		n++
	}

	if fw == types.FirmwareUEFI {
		add(types.RoleEFI, constants.ESPSizeMiB)
	}
	add(types.RoleSwap, swapBytes/constants.MiB)
	add(types.RoleRoot, 0)
	return l
}

// ListCandidateDisks queries the block device listing collaborator for whole
// disks the operator may install onto. Read-only.
func ListCandidateDisks(r executor.Runner) ([]types.DiskInfo, error) {
	out, err := r.Query("lsblk", "--json", "-d", "-o", "NAME,SIZE,TYPE")
	if err != nil {
		return nil, fmt.Errorf("listing disks: %w", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return nil, fmt.Errorf("parsing disk listing: %w", err)
	}

	query, err := gojq.Parse(`.blockdevices[] | select(.type == "disk") | [.name, .size]`)
	if err != nil {
		return nil, err
	}

	var disks []types.DiskInfo
	iter := query.Run(data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("parsing disk listing: %w", err)
		}
		pair, ok := v.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}
		name := fmt.Sprint(pair[0])
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "sr") || strings.HasPrefix(name, "zram") {
			continue
		}
		disks = append(disks, types.DiskInfo{
			Device: "/dev/" + name,
			Size:   fmt.Sprint(pair[1]),
		})
	}
	return disks, nil
}
