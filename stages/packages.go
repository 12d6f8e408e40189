package stages

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/archon-installer/archon/constants"
)

const defaultProfile = `alias ls='ls --color=auto'
alias ll='ls -la'
alias grep='grep --color=auto'
PS1='[\u@\h \W]\$ '
`

// Packages installs the optional extra package set, enables the standard
// services and seeds the user's shell profile.
func Packages(d *Deps) error {
	cfg := &d.Session.Config

	if cfg.ExtraPackages == nil {
		v, err := d.Prompt.Input("Extra packages (space separated, empty for none)", "")
		if err != nil {
			return err
		}
		// A deliberate empty answer still marks the question as asked.
		cfg.ExtraPackages = strings.Fields(v)
		if cfg.ExtraPackages == nil {
			cfg.ExtraPackages = []string{}
		}
	}
	if len(cfg.ExtraPackages) > 0 {
		args := append([]string{"-S", "--noconfirm", "--needed"}, cfg.ExtraPackages...)
		if err := mustRun(d.Chroot, "installing extra packages", "pacman", args...); err != nil {
			return err
		}
	}

	if err := mustRun(d.Chroot, "enabling NetworkManager", "systemctl", "enable", "NetworkManager"); err != nil {
		return err
	}

	if err := askBool(d, "Enable the SSH daemon?", false, &cfg.EnableSSH); err != nil {
		return err
	}
	if *cfg.EnableSSH {
		if err := mustRun(d.Chroot, "installing openssh", "pacman", "-S", "--noconfirm", "--needed", "openssh"); err != nil {
			return err
		}
		if err := mustRun(d.Chroot, "enabling sshd", "systemctl", "enable", "sshd"); err != nil {
			return err
		}
	}

	if user := cfg.Username; user != "" {
		home := d.target("home", user)
		if err := ensureDir(d, home); err != nil {
			return err
		}
		profile := filepath.Join(home, ".bashrc")
		if err := d.FS.WriteFile(profile, []byte(defaultProfile), constants.FilePerm); err != nil {
			return fmt.Errorf("writing shell profile: %w", err)
		}
		owner := fmt.Sprintf("%s:%s", user, user)
		if err := mustRun(d.Chroot, "fixing home ownership", "chown", "-R", owner, "/home/"+user); err != nil {
			return err
		}
	}

	return mustRun(d.Chroot, "enabling time synchronization", "systemctl", "enable", "systemd-timesyncd")
}
