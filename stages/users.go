package stages

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/archon-installer/archon/constants"
	"github.com/archon-installer/archon/prompt"
	"github.com/archon-installer/archon/types"
)

// usernameRe is the POSIX portable username rule: a lowercase letter or
// underscore, then lowercase letters, digits, underscores or hyphens.
var usernameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)

func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// userGroups grant hardware and admin access; wheel carries sudo.
const userGroups = "wheel,audio,video,storage,optical"

// Users sets the root password, creates the login user with its groups and
// password, and grants the admin group sudo through a dedicated drop-in.
func Users(d *Deps) error {
	cfg := &d.Session.Config

	rootPw := cfg.RootPassword
	if rootPw == "" {
		var err error
		if rootPw, err = promptPassword(d.Prompt, "root"); err != nil {
			return err
		}
		cfg.RootPassword = rootPw
	}
	if err := setPassword(d, "root", rootPw); err != nil {
		return err
	}

	name := cfg.Username
	for !ValidUsername(name) {
		if name != "" {
			d.Prompt.Warn(fmt.Sprintf("invalid username %q: must start with a lowercase letter or underscore", name))
		}
		var err error
		if name, err = d.Prompt.Input("Username", ""); err != nil {
			return err
		}
	}
	cfg.Username = name

	res, err := d.Chroot.Run("useradd", "-m", "-G", userGroups, name)
	if err != nil {
		return err
	}
	// 9 is "username already in use"; fine when the stage is re-run.
	if res.ExitCode != 0 && res.ExitCode != 9 {
		return fmt.Errorf("creating user: %w", &types.CollaboratorError{
			Command:  []string{"useradd", "-m", "-G", userGroups, name},
			ExitCode: res.ExitCode,
			Output:   res.Stderr,
		})
	}

	userPw := cfg.UserPassword
	if userPw == "" {
		if userPw, err = promptPassword(d.Prompt, name); err != nil {
			return err
		}
		cfg.UserPassword = userPw
	}
	if err := setPassword(d, name, userPw); err != nil {
		return err
	}

	sudoers := d.target("etc", "sudoers.d", "10-wheel")
	if err := ensureDir(d, filepath.Dir(sudoers)); err != nil {
		return err
	}
	rule := fmt.Sprintf("%%%s ALL=(ALL:ALL) ALL\n", constants.AdminGroup)
	if err := d.FS.WriteFile(sudoers, []byte(rule), constants.SudoersPerm); err != nil {
		return fmt.Errorf("writing sudoers drop-in: %w", err)
	}
	return nil
}

// promptPassword loops until both entries match and are non-empty.
func promptPassword(p prompt.Prompter, who string) (string, error) {
	for {
		pw, err := p.Password(fmt.Sprintf("Password for %s", who))
		if err != nil {
			return "", err
		}
		if pw == "" {
			p.Warn("password must not be empty")
			continue
		}
		again, err := p.Password("Confirm password")
		if err != nil {
			return "", err
		}
		if pw != again {
			p.Warn("passwords do not match")
			continue
		}
		return pw, nil
	}
}

func setPassword(d *Deps, user, pw string) error {
	res, err := d.Chroot.RunWithInput(fmt.Sprintf("%s:%s\n", user, pw), "chpasswd")
	if err != nil {
		return fmt.Errorf("setting password for %s: %w", user, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("setting password for %s: %w", user, &types.CollaboratorError{
			Command:  []string{"chpasswd"},
			ExitCode: res.ExitCode,
			Output:   res.Stderr,
		})
	}
	return nil
}
