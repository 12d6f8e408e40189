package stages

import (
	"fmt"
	"os"

	"github.com/archon-installer/archon/constants"
	"github.com/archon-installer/archon/types"
)

var corePackages = []string{"base", "linux", "linux-firmware", "networkmanager", "sudo"}

// PackageSet assembles the base installation set: fixed core packages plus
// the operator toggles plus the vendor microcode, when there is one.
func PackageSet(cfg types.Config, vendor types.CPUVendor) []string {
	pkgs := append([]string{}, corePackages...)
	if cfg.BaseDevel != nil && *cfg.BaseDevel {
		pkgs = append(pkgs, "base-devel")
	}
	if cfg.WifiTools != nil && *cfg.WifiTools {
		pkgs = append(pkgs, "iwd", "wireless_tools")
	}
	if mc := vendor.MicrocodePackage(); mc != "" {
		pkgs = append(pkgs, mc)
	}
	return pkgs
}

// BaseInstall installs the base system into the mounted target tree and
// generates the filesystem table from the live mount tree. Hard failure:
// a broken pacstrap leaves the stage incomplete.
func BaseInstall(d *Deps) error {
	cfg := &d.Session.Config
	if err := askBool(d, "Install base-devel (compilers and build tools)?", false, &cfg.BaseDevel); err != nil {
		return err
	}
	if err := askBool(d, "Install wireless tools?", false, &cfg.WifiTools); err != nil {
		return err
	}

	vendor, err := d.Vendor()
	if err != nil {
		d.Log.Warnf("CPU vendor unknown, skipping microcode: %s", err)
		vendor = types.VendorUnknown
	}

	pkgs := PackageSet(*cfg, vendor)
	d.Log.Infof("installing base system: %v", pkgs)
	args := append([]string{"-K", d.Session.MountRoot}, pkgs...)
	if err := mustRun(d.Run, "installing base system", "pacstrap", args...); err != nil {
		return err
	}
	d.Session.Microcode = vendor.MicrocodePackage()

	fstab, err := d.Run.Query("genfstab", "-U", d.Session.MountRoot)
	if err != nil {
		return fmt.Errorf("generating fstab: %w", err)
	}
	path := d.target("etc", "fstab")
	existing, _ := d.FS.ReadFile(path)
	content := append(existing, []byte(fstab+"\n")...)
	if err := d.FS.WriteFile(path, content, constants.FilePerm); err != nil {
		return fmt.Errorf("writing fstab: %w", err)
	}

	review, err := d.Prompt.Confirm("Review the generated fstab in an editor?", false)
	if err != nil {
		return err
	}
	if review {
		if err := d.Run.RunInteractive(editor(), path); err != nil {
			d.Log.Warnf("fstab review: %s", err)
		}
	}
	return nil
}

func editor() string {
	if ed := os.Getenv("EDITOR"); ed != "" {
		return ed
	}
	return "nano"
}
