package types

import "fmt"

// FirmwareMode is the boot environment the live system was started in.
// Detected once at startup, immutable afterwards. It gates the partition
// table style and the bootloader choice.
type FirmwareMode string

const (
	FirmwareUEFI FirmwareMode = "uefi"
	FirmwareBIOS FirmwareMode = "bios"
)

// Filesystem is the root filesystem kind. Adding a kind means extending the
// constant list and MkfsArgs, nothing else branches on raw strings.
type Filesystem string

const (
	FSExt4  Filesystem = "ext4"
	FSBtrfs Filesystem = "btrfs"
	FSXfs   Filesystem = "xfs"
)

func Filesystems() []Filesystem {
	return []Filesystem{FSExt4, FSBtrfs, FSXfs}
}

func ParseFilesystem(s string) (Filesystem, error) {
	for _, fs := range Filesystems() {
		if s == string(fs) {
			return fs, nil
		}
	}
	return "", fmt.Errorf("invalid root filesystem %q (want ext4, btrfs or xfs)", s)
}

// MkfsArgs returns the format command for a device carrying this filesystem.
func (f Filesystem) MkfsArgs(device string) []string {
	switch f {
	case FSBtrfs:
		return []string{"mkfs.btrfs", "-f", device}
	case FSXfs:
		return []string{"mkfs.xfs", "-f", device}
	default:
		return []string{"mkfs.ext4", "-F", device}
	}
}

// BootloaderKind is the bootloader the operator wants. GRUB is forced under
// legacy BIOS regardless of this preference.
type BootloaderKind string

const (
	BootSystemdBoot BootloaderKind = "systemd-boot"
	BootGrub        BootloaderKind = "grub"
)

func ParseBootloader(s string) (BootloaderKind, error) {
	switch s {
	case string(BootSystemdBoot):
		return BootSystemdBoot, nil
	case string(BootGrub):
		return BootGrub, nil
	}
	return "", fmt.Errorf("invalid bootloader %q (want systemd-boot or grub)", s)
}

// CPUVendor is the CPU vendor identification string as reported by the
// hardware, reduced to the two vendors that ship microcode packages.
type CPUVendor string

const (
	VendorIntel   CPUVendor = "GenuineIntel"
	VendorAMD     CPUVendor = "AuthenticAMD"
	VendorUnknown CPUVendor = "unknown"
)

// VendorFromString maps the raw vendor string to a known vendor. The match is
// exact, anything else is unknown and gets no microcode package.
func VendorFromString(s string) CPUVendor {
	switch s {
	case string(VendorIntel):
		return VendorIntel
	case string(VendorAMD):
		return VendorAMD
	}
	return VendorUnknown
}

// MicrocodePackage returns the microcode package for the vendor, empty when
// there is none to install.
func (v CPUVendor) MicrocodePackage() string {
	switch v {
	case VendorIntel:
		return "intel-ucode"
	case VendorAMD:
		return "amd-ucode"
	}
	return ""
}

// Config holds every operator or config-file supplied value for one
// installation run. Each field starts unset and is filled either from a
// pre-supplied configuration file or by a prompt the first time its owning
// stage runs. Pointer booleans distinguish "unset" from "answered no".
type Config struct {
	Hostname       string
	Timezone       string
	Locale         string
	Keymap         string
	TargetDisk     string
	SwapSize       string // "auto" or "<n>[M|G]"
	RootFilesystem Filesystem
	Bootloader     BootloaderKind
	Username       string
	RootPassword   string
	UserPassword   string
	BaseDevel      *bool
	WifiTools      *bool
	Multilib       *bool
	EnableSSH      *bool
	ExtraPackages  []string
}
