package pty

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

// DefaultCommand returns the shell started when no command is configured:
// bash behind "stdbuf -o0" when both are installed, otherwise $SHELL, and
// /bin/sh as a last resort.
func DefaultCommand() []string {
	if _, err := exec.LookPath("stdbuf"); err == nil {
		if _, err := exec.LookPath("bash"); err == nil {
			return []string{"stdbuf", "-o0", "bash"}
		}
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return []string{shell}
	}
	return []string{"/bin/sh"}
}

// ParseCommand splits a configured command line into argv using shell
// quoting rules. Lines that need a real shell (pipes, redirection,
// variables, several commands) are wrapped in "sh -c".
func ParseCommand(command string) ([]string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, nil
	}
	if strings.ContainsAny(command, "\n|&;$`<>") {
		return []string{"sh", "-c", command}, nil
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	return argv, nil
}

// KeyBytes translates a key name such as "Enter" or "C-c" to the bytes a
// terminal would send for it. Unknown names are returned unchanged.
func KeyBytes(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "enter":
		return "\r"
	case "c-c":
		return "\x03"
	case "c-d":
		return "\x04"
	case "c-z":
		return "\x1a"
	case "c-l":
		return "\x0c"
	case "escape", "esc":
		return "\x1b"
	case "tab":
		return "\t"
	case "backspace":
		return "\x7f"
	case "up":
		return "\x1b[A"
	case "down":
		return "\x1b[B"
	case "right":
		return "\x1b[C"
	case "left":
		return "\x1b[D"
	default:
		return key
	}
}
