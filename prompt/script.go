package prompt

import "fmt"

// Script is a canned Prompter for tests. Answers are consumed in order per
// channel; running out of answers is an error so tests fail loudly instead
// of hanging on a phantom prompt.
type Script struct {
	Inputs     []string
	Passwords  []string
	Confirms   []bool
	Selections []string

	Warnings []string
	Said     []string
}

func (s *Script) Input(label, def string) (string, error) {
	if len(s.Inputs) == 0 {
		return "", fmt.Errorf("script exhausted: unexpected input prompt %q", label)
	}
	v := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	return v, nil
}

func (s *Script) Password(label string) (string, error) {
	if len(s.Passwords) == 0 {
		return "", fmt.Errorf("script exhausted: unexpected password prompt %q", label)
	}
	v := s.Passwords[0]
	s.Passwords = s.Passwords[1:]
	return v, nil
}

func (s *Script) Confirm(label string, def bool) (bool, error) {
	if len(s.Confirms) == 0 {
		return false, fmt.Errorf("script exhausted: unexpected confirm prompt %q", label)
	}
	v := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return v, nil
}

func (s *Script) Select(label string, options []string) (string, error) {
	if len(s.Selections) == 0 {
		return "", fmt.Errorf("script exhausted: unexpected selection prompt %q", label)
	}
	v := s.Selections[0]
	s.Selections = s.Selections[1:]
	return v, nil
}

func (s *Script) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

func (s *Script) Say(msg string) {
	s.Said = append(s.Said, msg)
}
