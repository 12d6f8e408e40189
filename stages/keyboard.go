package stages

import (
	"fmt"
	"strings"
)

// Keyboard applies the console keymap. This is the one stage with a
// retry-until-valid loop: a keymap the collaborator rejects is re-prompted,
// never fatal.
func Keyboard(d *Deps) error {
	for {
		km := d.Session.Config.Keymap
		if km == "" {
			var err error
			km, err = d.Prompt.Input("Console keymap", "us")
			if err != nil {
				return err
			}
		}
		if strings.TrimSpace(km) == "" {
			d.Prompt.Warn("keymap must not be empty")
			d.Session.Config.Keymap = ""
			continue
		}

		res, err := d.Run.Run("loadkeys", km)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			d.Prompt.Warn(fmt.Sprintf("unknown keymap %q", km))
			d.Session.Config.Keymap = ""
			continue
		}

		d.Session.Config.Keymap = km
		d.Log.Infof("console keymap set to %s", km)
		return nil
	}
}
