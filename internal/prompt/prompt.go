// Package prompt asks the user to confirm release steps.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("release aborted by user")

// Choice is a selectable option.
type Choice struct {
	Label string
	Value string
}

// Prompter asks questions during a release.
type Prompter interface {
	Confirm(title string, def bool) (bool, error)
	Select(title string, choices []Choice, def string) (string, error)
	Input(title string, validate func(string) error) (string, error)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

type huhPrompter struct {
	in  io.Reader
	out io.Writer
}

// New returns a Prompter backed by interactive terminal forms.
func New(in io.Reader, out io.Writer) Prompter {
	return &huhPrompter{in: in, out: out}
}

func (h *huhPrompter) run(field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithShowHelp(false).
		WithInput(h.in).
		WithOutput(h.out)

	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

func (h *huhPrompter) Confirm(title string, def bool) (bool, error) {
	value := def
	field := huh.NewConfirm().
		Title(title).
		Value(&value)
	if err := h.run(field); err != nil {
		return false, err
	}
	return value, nil
}

func (h *huhPrompter) Select(title string, choices []Choice, def string) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("no options for %q", title)
	}

	selection := def
	if selection == "" {
		selection = choices[0].Value
	}
	opts := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		opts = append(opts, huh.NewOption(c.Label, c.Value))
	}

	field := huh.NewSelect[string]().
		Title(title).
		Options(opts...).
		Value(&selection)
	if err := h.run(field); err != nil {
		return "", err
	}
	return selection, nil
}

func (h *huhPrompter) Input(title string, validate func(string) error) (string, error) {
	var value string
	field := huh.NewInput().
		Title(title).
		Prompt("> ").
		Value(&value)
	if validate != nil {
		field.Validate(func(s string) error { return validate(strings.TrimSpace(s)) })
	}
	if err := h.run(field); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

type defaults struct{}

// Defaults returns a Prompter that answers every question with its default,
// as used with --ci.
func Defaults() Prompter {
	return defaults{}
}

func (defaults) Confirm(_ string, def bool) (bool, error) {
	return def, nil
}

func (defaults) Select(title string, choices []Choice, def string) (string, error) {
	if def != "" {
		return def, nil
	}
	if len(choices) == 0 {
		return "", fmt.Errorf("no options for %q", title)
	}
	return choices[0].Value, nil
}

func (defaults) Input(title string, _ func(string) error) (string, error) {
	return "", fmt.Errorf("%q needs an answer but prompts are disabled", title)
}

// Scripted answers prompts from fixed queues, for tests and piped input.
// Missing answers fall back to the defaults.
type Scripted struct {
	Confirms   []bool
	Selections []string
	Inputs     []string

	// Asked records every title in order.
	Asked []string
}

func (s *Scripted) Confirm(title string, def bool) (bool, error) {
	s.Asked = append(s.Asked, title)
	if len(s.Confirms) == 0 {
		return def, nil
	}
	v := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return v, nil
}

func (s *Scripted) Select(title string, choices []Choice, def string) (string, error) {
	s.Asked = append(s.Asked, title)
	if len(s.Selections) == 0 {
		return Defaults().Select(title, choices, def)
	}
	v := s.Selections[0]
	s.Selections = s.Selections[1:]
	for _, c := range choices {
		if c.Value == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%q is not an option for %q", v, title)
}

func (s *Scripted) Input(title string, validate func(string) error) (string, error) {
	s.Asked = append(s.Asked, title)
	if len(s.Inputs) == 0 {
		return Defaults().Input(title, validate)
	}
	v := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	if validate != nil {
		if err := validate(v); err != nil {
			return "", err
		}
	}
	return v, nil
}
