// Package prompt abstracts operator interaction so stages can be driven by a
// scripted prompter in tests and by pterm in production.
package prompt

import "github.com/pterm/pterm"

// Prompter collects operator input. All methods block until the operator
// answers.
type Prompter interface {
	Input(label, def string) (string, error)
	Password(label string) (string, error)
	Confirm(label string, def bool) (bool, error)
	Select(label string, options []string) (string, error)
	// Warn surfaces a recoverable problem to the operator.
	Warn(msg string)
	// Say prints informational text.
	Say(msg string)
}

// Term is the pterm-backed Prompter used in a real session.
type Term struct{}

func NewTerm() *Term { return &Term{} }

func (t *Term) Input(label, def string) (string, error) {
	return pterm.DefaultInteractiveTextInput.WithDefaultValue(def).Show(label)
}

func (t *Term) Password(label string) (string, error) {
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show(label)
}

func (t *Term) Confirm(label string, def bool) (bool, error) {
	return pterm.DefaultInteractiveConfirm.WithDefaultValue(def).Show(label)
}

func (t *Term) Select(label string, options []string) (string, error) {
	return pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithMaxHeight(len(options)).
		Show(label)
}

func (t *Term) Warn(msg string) {
	pterm.Warning.Println(msg)
}

func (t *Term) Say(msg string) {
	pterm.Info.Println(msg)
}
