// Package constants This file contains all the constants that can be reused across the project
package constants

const (
	MiB = int64(1024 * 1024)
	GiB = 1024 * MiB

	FilePerm    = 0644
	SudoersPerm = 0440

	// MountRoot is where the target root filesystem stays mounted for the
	// whole session. The EFI system partition, when present, goes under
	// MountRoot/BootDir.
	MountRoot = "/mnt"
	BootDir   = "boot"

	// ESPSizeMiB is the fixed size of the EFI system partition.
	ESPSizeMiB = int64(512)

	// ConnectivityHost is the well known host used for the reachability probe.
	ConnectivityHost = "archlinux.org"

	AdminGroup = "wheel"
)
