package stages

import (
	"fmt"
	"strings"

	vfs "github.com/twpayne/go-vfs/v4"

	"github.com/archon-installer/archon/constants"
)

// Configure sets up the installed system: timezone, locale, console keymap,
// hostname, package manager tuning and the initramfs. The initramfs runs
// last; its hooks may embed locale and hostname artifacts.
func Configure(d *Deps) error {
	cfg := &d.Session.Config
	var err error
	if cfg.Timezone == "" {
		if cfg.Timezone, err = d.Prompt.Input("Timezone", "UTC"); err != nil {
			return err
		}
	}
	if cfg.Locale == "" {
		if cfg.Locale, err = d.Prompt.Input("Locale", "en_US.UTF-8"); err != nil {
			return err
		}
	}
	if cfg.Hostname == "" {
		if cfg.Hostname, err = d.Prompt.Input("Hostname", "arch"); err != nil {
			return err
		}
	}
	if err := askBool(d, "Enable the multilib repository?", false, &cfg.Multilib); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func(*Deps) error
	}{
		{"timezone", setTimezone},
		{"hardware clock", syncClock},
		{"locale", setLocale},
		{"console keymap", writeVconsole},
		{"hostname", setHostname},
		{"package manager", tunePacman},
		{"initramfs", regenInitramfs},
	}
	for _, step := range steps {
		if err := step.fn(d); err != nil {
			return fmt.Errorf("configuring %s: %w", step.name, err)
		}
	}
	return nil
}

func setTimezone(d *Deps) error {
	tz := d.Session.Config.Timezone
	return mustRun(d.Chroot, "linking localtime", "ln", "-sf", "/usr/share/zoneinfo/"+tz, "/etc/localtime")
}

func syncClock(d *Deps) error {
	return mustRun(d.Chroot, "syncing hardware clock", "hwclock", "--systohc")
}

func setLocale(d *Deps) error {
	locale := d.Session.Config.Locale
	genPath := d.target("etc", "locale.gen")
	line := locale + " UTF-8\n"

	existing, _ := d.FS.ReadFile(genPath)
	// The entry may already sit on the first line, where the newline-prefixed
	// search cannot see it.
	present := strings.HasPrefix(string(existing), line) || strings.Contains(string(existing), "\n"+line)
	if !present {
		content := append(existing, []byte(line)...)
		if err := d.FS.WriteFile(genPath, content, constants.FilePerm); err != nil {
			return err
		}
	}
	if err := mustRun(d.Chroot, "generating locales", "locale-gen"); err != nil {
		return err
	}
	return d.FS.WriteFile(d.target("etc", "locale.conf"), []byte("LANG="+locale+"\n"), constants.FilePerm)
}

func writeVconsole(d *Deps) error {
	km := d.Session.Config.Keymap
	if km == "" {
		km = "us"
	}
	return d.FS.WriteFile(d.target("etc", "vconsole.conf"), []byte("KEYMAP="+km+"\n"), constants.FilePerm)
}

func setHostname(d *Deps) error {
	host := d.Session.Config.Hostname
	if err := d.FS.WriteFile(d.target("etc", "hostname"), []byte(host+"\n"), constants.FilePerm); err != nil {
		return err
	}
	hosts := fmt.Sprintf("127.0.0.1\tlocalhost\n::1\t\tlocalhost\n127.0.1.1\t%s.localdomain\t%s\n", host, host)
	return d.FS.WriteFile(d.target("etc", "hosts"), []byte(hosts), constants.FilePerm)
}

func tunePacman(d *Deps) error {
	path := d.target("etc", "pacman.conf")
	raw, err := d.FS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading pacman.conf: %w", err)
	}
	conf := string(raw)
	conf = strings.Replace(conf, "#Color", "Color", 1)
	conf = strings.Replace(conf, "#ParallelDownloads = 5", "ParallelDownloads = 5", 1)

	multilib := d.Session.Config.Multilib != nil && *d.Session.Config.Multilib
	if multilib {
		conf = strings.Replace(conf,
			"#[multilib]\n#Include = /etc/pacman.d/mirrorlist",
			"[multilib]\nInclude = /etc/pacman.d/mirrorlist", 1)
	}
	if err := d.FS.WriteFile(path, []byte(conf), constants.FilePerm); err != nil {
		return err
	}
	if multilib {
		return mustRun(d.Chroot, "refreshing package databases", "pacman", "-Sy", "--noconfirm")
	}
	return nil
}

func regenInitramfs(d *Deps) error {
	return mustRun(d.Chroot, "regenerating initramfs", "mkinitcpio", "-P")
}

// ensureDir creates a directory tree inside the target filesystem.
func ensureDir(d *Deps, path string) error {
	return vfs.MkdirAll(d.FS, path, 0755)
}
