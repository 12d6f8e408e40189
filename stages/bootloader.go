package stages

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/archon-installer/archon/constants"
	"github.com/archon-installer/archon/types"
)

// Bootloader installs the boot manager. Legacy BIOS forces GRUB regardless
// of the operator's stated preference; under UEFI both kinds are offered.
func Bootloader(d *Deps) error {
	cfg := &d.Session.Config
	kind := cfg.Bootloader

	if d.Session.Firmware == types.FirmwareBIOS {
		if kind != "" && kind != types.BootGrub {
			d.Prompt.Warn("legacy BIOS boot cannot use systemd-boot, using GRUB")
		}
		kind = types.BootGrub
	} else if kind == "" {
		choice, err := d.Prompt.Select("Bootloader", []string{
			string(types.BootSystemdBoot),
			string(types.BootGrub),
		})
		if err != nil {
			return err
		}
		if kind, err = types.ParseBootloader(choice); err != nil {
			return err
		}
	}
	cfg.Bootloader = kind

	switch kind {
	case types.BootSystemdBoot:
		return installSystemdBoot(d)
	case types.BootGrub:
		return installGrub(d)
	}
	return fmt.Errorf("unknown bootloader kind %q", kind)
}

func installSystemdBoot(d *Deps) error {
	if err := mustRun(d.Chroot, "installing boot manager", "bootctl", "install"); err != nil {
		return err
	}

	loaderDir := d.target(constants.BootDir, "loader")
	entriesDir := filepath.Join(loaderDir, "entries")
	if err := ensureDir(d, entriesDir); err != nil {
		return err
	}

	loaderConf := "default arch.conf\ntimeout 3\nconsole-mode auto\neditor no\n"
	if err := d.FS.WriteFile(filepath.Join(loaderDir, "loader.conf"), []byte(loaderConf), constants.FilePerm); err != nil {
		return fmt.Errorf("writing loader configuration: %w", err)
	}

	microcode := microcodeImage(d)
	rootUUID := d.Session.RootUUID
	entries := map[string]string{
		"arch.conf":          bootEntry("Arch Linux", "initramfs-linux.img", microcode, rootUUID),
		"arch-fallback.conf": bootEntry("Arch Linux (fallback)", "initramfs-linux-fallback.img", microcode, rootUUID),
	}
	for name, content := range entries {
		if err := d.FS.WriteFile(filepath.Join(entriesDir, name), []byte(content), constants.FilePerm); err != nil {
			return fmt.Errorf("writing boot entry %s: %w", name, err)
		}
	}
	return nil
}

func bootEntry(title, initramfs, microcodeImg, rootUUID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "title %s\n", title)
	b.WriteString("linux /vmlinuz-linux\n")
	if microcodeImg != "" {
		fmt.Fprintf(&b, "initrd %s\n", microcodeImg)
	}
	fmt.Fprintf(&b, "initrd /%s\n", initramfs)
	fmt.Fprintf(&b, "options root=UUID=%s rw\n", rootUUID)
	return b.String()
}

// microcodeImage detects which microcode initrd, if any, the base install
// put on the boot partition. The session record wins; the target tree is
// checked when the session was re-entered without it.
func microcodeImage(d *Deps) string {
	images := map[string]string{
		"intel-ucode": "/intel-ucode.img",
		"amd-ucode":   "/amd-ucode.img",
	}
	if img, ok := images[d.Session.Microcode]; ok {
		return img
	}
	for _, img := range images {
		if _, err := d.FS.Stat(d.target(constants.BootDir, img)); err == nil {
			return img
		}
	}
	return ""
}

func installGrub(d *Deps) error {
	pkgs := []string{"grub"}
	uefi := d.Session.Firmware == types.FirmwareUEFI
	if uefi {
		pkgs = append(pkgs, "efibootmgr")
	}
	args := append([]string{"-S", "--noconfirm", "--needed"}, pkgs...)
	if err := mustRun(d.Chroot, "installing bootloader package", "pacman", args...); err != nil {
		return err
	}

	if uefi {
		err := mustRun(d.Chroot, "installing GRUB",
			"grub-install", "--target=x86_64-efi", "--efi-directory=/"+constants.BootDir, "--bootloader-id=GRUB")
		if err != nil {
			return err
		}
	} else {
		err := mustRun(d.Chroot, "installing GRUB",
			"grub-install", "--target=i386-pc", d.Session.Config.TargetDisk)
		if err != nil {
			return err
		}
	}

	return mustRun(d.Chroot, "generating boot configuration", "grub-mkconfig", "-o", "/boot/grub/grub.cfg")
}
