package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ErrInputTerminated is returned when input ends before a valid answer.
var ErrInputTerminated = errors.New("input terminated")

// Scope selects how much of a recurring series an action applies to.
type Scope int

// Scopes offered for recurring expenses.
const (
	ScopeCancel Scope = iota
	ScopeSingle
	ScopeSeries
)

func (s Scope) String() string {
	switch s {
	case ScopeSingle:
		return "single"
	case ScopeSeries:
		return "series"
	default:
		return "cancel"
	}
}

// Prompter asks the user yes/no and recurring-scope questions.
type Prompter struct {
	writer io.Writer
	reader *NonBlockingReader
}

// NewCLIPrompter creates a new CLI prompter with the given reader and writer.
func NewCLIPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// Confirm asks question and reports whether the user answered yes.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	choice, err := p.promptChoice(ctx, question+" [y/N]", []string{"y", "yes", "n", "no", ""})
	if err != nil {
		return false, err
	}
	return choice == "y" || choice == "yes", nil
}

// ChooseScope asks whether action applies to one expense or its whole series.
func (p *Prompter) ChooseScope(ctx context.Context, action, title string) (Scope, error) {
	header := fmt.Sprintf("%s %q is part of a recurring series.", RepeatIcon, title)
	if _, err := fmt.Fprintln(p.writer, InfoStyle.Render(header)); err != nil {
		return ScopeCancel, fmt.Errorf("failed to write header: %w", err)
	}

	options := []string{
		fmt.Sprintf("[o] %s only this one", action),
		fmt.Sprintf("[a] %s every one in the series", action),
		"[c] cancel",
	}
	for _, opt := range options {
		if _, err := fmt.Fprintln(p.writer, "  "+opt); err != nil {
			slog.Warn("Failed to write option", "error", err)
		}
	}

	choice, err := p.promptChoice(ctx, "Choice", []string{"o", "a", "c"})
	if err != nil {
		return ScopeCancel, err
	}
	switch choice {
	case "o":
		return ScopeSingle, nil
	case "a":
		return ScopeSeries, nil
	default:
		return ScopeCancel, nil
	}
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrInputTerminated
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}
