package executor

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// FakeRunner is a scripted Runner for stage tests. Results and errors are
// keyed by command-line prefix, longest match wins; anything unscripted
// succeeds with empty output. Every call is recorded.
type FakeRunner struct {
	Commands    [][]string
	Inputs      map[string]string
	Interactive [][]string

	results map[string]Result
	once    map[string][]Result
	errors  map[string]error
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Inputs:  map[string]string{},
		results: map[string]Result{},
		once:    map[string][]Result{},
		errors:  map[string]error{},
	}
}

// Script sets the result for every command line starting with prefix.
func (f *FakeRunner) Script(prefix string, res Result) {
	f.results[prefix] = res
}

// Fail makes every command line starting with prefix exit with code and
// stderr out.
func (f *FakeRunner) Fail(prefix string, code int, out string) {
	f.results[prefix] = Result{ExitCode: code, Stderr: out}
}

// ScriptOnce queues a result consumed by only the next matching command line;
// later matches fall back to Script/Fail results or the default success.
func (f *FakeRunner) ScriptOnce(prefix string, res Result) {
	f.once[prefix] = append(f.once[prefix], res)
}

// SpawnError makes commands starting with prefix fail to spawn entirely.
func (f *FakeRunner) SpawnError(prefix string, err error) {
	f.errors[prefix] = err
}

func (f *FakeRunner) lookup(cmdline string) (Result, error) {
	var bestOnce string
	for prefix, queue := range f.once {
		if len(queue) > 0 && strings.HasPrefix(cmdline, prefix) && len(prefix) > len(bestOnce) {
			bestOnce = prefix
		}
	}
	if bestOnce != "" {
		res := f.once[bestOnce][0]
		f.once[bestOnce] = f.once[bestOnce][1:]
		return res, nil
	}

	var best string
	for prefix := range f.results {
		if strings.HasPrefix(cmdline, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	for prefix := range f.errors {
		if strings.HasPrefix(cmdline, prefix) {
			return Result{}, f.errors[prefix]
		}
	}
	if best == "" {
		return Result{}, nil
	}
	return f.results[best], nil
}

func (f *FakeRunner) Run(name string, args ...string) (Result, error) {
	argv := append([]string{name}, args...)
	f.Commands = append(f.Commands, argv)
	return f.lookup(strings.Join(argv, " "))
}

func (f *FakeRunner) RunWithInput(stdin, name string, args ...string) (Result, error) {
	argv := append([]string{name}, args...)
	f.Inputs[strings.Join(argv, " ")] = stdin
	return f.Run(name, args...)
}

func (f *FakeRunner) RunInteractive(name string, args ...string) error {
	f.Interactive = append(f.Interactive, append([]string{name}, args...))
	return nil
}

func (f *FakeRunner) Query(name string, args ...string) (string, error) {
	res, err := f.Run(name, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s exited %d", name, res.ExitCode)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (f *FakeRunner) SH(cmdline string) (string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return "", err
	}
	res, err := f.Run(argv[0], argv[1:]...)
	return res.Stdout + res.Stderr, err
}

// Called reports whether any recorded command line starts with prefix.
func (f *FakeRunner) Called(prefix string) bool {
	for _, argv := range f.Commands {
		if strings.HasPrefix(strings.Join(argv, " "), prefix) {
			return true
		}
	}
	return false
}

// CallCount returns how many recorded command lines start with prefix.
func (f *FakeRunner) CallCount(prefix string) int {
	n := 0
	for _, argv := range f.Commands {
		if strings.HasPrefix(strings.Join(argv, " "), prefix) {
			n++
		}
	}
	return n
}
