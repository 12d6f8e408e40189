// Package controller drives the stage menu loop: render progress, dispatch
// the chosen stage, record the outcome, repeat. The operator always chooses
// the next stage explicitly; there is no automatic advancement and a running
// stage is never interrupted.
package controller

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/archon-installer/archon/executor"
	"github.com/archon-installer/archon/prompt"
	"github.com/archon-installer/archon/session"
	"github.com/archon-installer/archon/stages"
	"github.com/archon-installer/archon/types"
)

const (
	choiceFinish = "Finish installation"
	choiceExit   = "Exit"
)

type Controller struct {
	session *session.Session
	deps    *stages.Deps
	prompt  prompt.Prompter
	run     executor.Runner
	log     types.SessionLogger
}

func New(s *session.Session, deps *stages.Deps, p prompt.Prompter, run executor.Runner, log types.SessionLogger) *Controller {
	return &Controller{session: s, deps: deps, prompt: p, run: run, log: log}
}

// menuItems renders the progress summary into the closed menu alphabet.
func (c *Controller) menuItems() ([]string, map[string]session.StageID) {
	var items []string
	byLabel := map[string]session.StageID{}
	for _, row := range c.session.Progress() {
		mark := "[ ]"
		if row.Completed {
			mark = "[x]"
		}
		label := fmt.Sprintf("%s %s", mark, row.Title)
		items = append(items, label)
		byLabel[label] = row.ID
	}
	return append(items, choiceFinish, choiceExit), byLabel
}

// Run is the session loop. It returns nil on finish and on operator exit.
func (c *Controller) Run() error {
	pterm.DefaultSection.Println("Installation")
	for {
		items, byLabel := c.menuItems()
		choice, err := c.prompt.Select("Select a stage", items)
		if err != nil {
			return err
		}

		switch choice {
		case choiceExit:
			c.log.Infof("operator exit, transcript at %s", c.session.TranscriptPath)
			return nil
		case choiceFinish:
			done, err := c.finish()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		default:
			id, ok := byLabel[choice]
			if !ok {
				// Closed input alphabet: an unrecognized selection is a
				// recoverable validation error, not an exit.
				c.prompt.Warn(fmt.Sprintf("unknown selection %q", choice))
				continue
			}
			c.runStage(id)
		}
	}
}

func (c *Controller) runStage(id session.StageID) {
	if ok, reason := c.session.CanRun(id); !ok {
		perr := &types.PreconditionError{Stage: string(id), Reason: reason}
		c.log.Infof("%s", perr)
		c.prompt.Warn(perr.Error())
		return
	}

	c.log.Infof("running stage %s", id)
	err := stages.ForID(id)(c.deps)
	switch {
	case err == nil:
		c.session.MarkComplete(id)
		c.prompt.Say(fmt.Sprintf("%s completed", id.Title()))
	case errors.Is(err, types.ErrAborted):
		c.log.Infof("stage %s aborted by operator", id)
	default:
		c.session.MarkFailed(id)
		c.prompt.Warn(fmt.Sprintf("%s failed: %s (transcript: %s)", id.Title(), err, c.session.TranscriptPath))
	}
}

// finish is only meaningful once the bootloader stage is complete; selecting
// it earlier warns and returns to the menu.
func (c *Controller) finish() (bool, error) {
	if !c.session.Completed(session.StageBootloader) {
		c.prompt.Warn("the bootloader stage has not completed; the system would not boot")
		return false, nil
	}
	ok, err := c.prompt.Confirm("Unmount the target and finish?", true)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if _, err := c.run.SH("umount -R " + c.session.MountRoot); err != nil {
		c.log.Warnf("unmounting target: %s", err)
	}
	c.prompt.Say(fmt.Sprintf("Installation finished. Transcript: %s", c.session.TranscriptPath))
	return true, nil
}
