// Package hardware probes the machine the installer is running on: firmware
// boot mode, installed RAM and CPU vendor.
package hardware

import (
	"fmt"
	"os"
	"strings"

	"github.com/jaypipes/ghw"

	"github.com/archon-installer/archon/types"
)

// Paths holds the sysfs locations the probes read. Overridable so tests can
// point them into a fabricated tree.
type Paths struct {
	EFIVars string
}

func NewPaths(withOptionalPrefix string) *Paths {
	p := &Paths{
		EFIVars: "/sys/firmware/efi",
	}

	// Allow overriding the root via env var. It has precedence over anything
	val, exists := os.LookupEnv("ARCHON_CHROOT")
	if exists {
		val = strings.TrimSuffix(val, "/")
		p.EFIVars = fmt.Sprintf("%s%s", val, p.EFIVars)
		return p
	}

	if withOptionalPrefix != "" {
		withOptionalPrefix = strings.TrimSuffix(withOptionalPrefix, "/")
		p.EFIVars = fmt.Sprintf("%s%s", withOptionalPrefix, p.EFIVars)
	}
	return p
}

// DetectFirmware reports UEFI when the firmware exposes its EFI interface in
// sysfs, legacy BIOS otherwise. Detected once at startup, never re-checked.
func DetectFirmware(paths *Paths) types.FirmwareMode {
	if _, err := os.Stat(paths.EFIVars); err == nil {
		return types.FirmwareUEFI
	}
	return types.FirmwareBIOS
}

// TotalRAM returns the physical memory size in bytes.
func TotalRAM() (int64, error) {
	mem, err := ghw.Memory()
	if err != nil {
		return 0, fmt.Errorf("querying memory: %w", err)
	}
	if mem.TotalPhysicalBytes <= 0 {
		return 0, fmt.Errorf("memory size not reported")
	}
	return mem.TotalPhysicalBytes, nil
}

// CPUVendor returns the vendor identification of the first processor.
func CPUVendor() (types.CPUVendor, error) {
	cpu, err := ghw.CPU()
	if err != nil {
		return types.VendorUnknown, fmt.Errorf("querying cpu: %w", err)
	}
	if len(cpu.Processors) == 0 {
		return types.VendorUnknown, fmt.Errorf("no processors reported")
	}
	return types.VendorFromString(cpu.Processors[0].Vendor), nil
}
