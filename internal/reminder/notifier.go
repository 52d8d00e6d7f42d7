package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/Veraticus/the-spice-must-pay/internal/cli"
)

// Permission mirrors the desktop notification permission states.
type Permission string

// Permission states.
const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// ErrNoCommand is returned when a CommandNotifier has nothing to run.
var ErrNoCommand = errors.New("notification command is empty")

// Notifier delivers a notification to the user.
type Notifier interface {
	Permission(ctx context.Context) Permission
	Notify(ctx context.Context, title, body string) error
}

// TerminalNotifier prints notifications as a box on a writer.
type TerminalNotifier struct {
	W  io.Writer
	mu sync.Mutex
}

// Permission is always granted for the terminal.
func (n *TerminalNotifier) Permission(context.Context) Permission {
	return PermissionGranted
}

// Notify writes the notification.
func (n *TerminalNotifier) Notify(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	box := cli.RenderBox(cli.BellIcon+" "+title, body)
	if _, err := fmt.Fprintln(n.W, box); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// CommandNotifier runs an external program such as notify-send with the
// title and body appended to its arguments.
type CommandNotifier struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	name     string
	args     []string
}

// NewCommandNotifier parses command ("notify-send -u normal") into a notifier.
func NewCommandNotifier(command string) (*CommandNotifier, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	return &CommandNotifier{
		name:     fields[0],
		args:     fields[1:],
		lookPath: exec.LookPath,
		run:      runCommand,
	}, nil
}

// Permission is denied when the program is not on PATH.
func (n *CommandNotifier) Permission(context.Context) Permission {
	if _, err := n.lookPath(n.name); err != nil {
		return PermissionDenied
	}
	return PermissionGranted
}

// Notify runs the program.
func (n *CommandNotifier) Notify(ctx context.Context, title, body string) error {
	args := append(append([]string(nil), n.args...), title, body)
	if err := n.run(ctx, n.name, args...); err != nil {
		return fmt.Errorf("notification command %s failed: %w", n.name, err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return err
}
