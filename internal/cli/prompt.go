// Package cli provides shared utilities for CLI commands: prompts, numbered
// menus, date pattern matching and progress spinners.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Errors
var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrEmptyInput       = errors.New("no input given")
)

// Prompter reads answers from an input stream and writes prompts to Out.
// Passwords are read without echo when the input is a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // terminal file descriptor, -1 when input is not a terminal
}

// NewPrompter returns a prompter over stdin and stdout.
func NewPrompter() *Prompter {
	return NewFilePrompter(os.Stdin, os.Stdout)
}

// NewFilePrompter returns a prompter reading from f. Password input is
// hidden when f is a terminal.
func NewFilePrompter(f *os.File, out io.Writer) *Prompter {
	p := NewReaderPrompter(f, out)
	if fd := int(f.Fd()); term.IsTerminal(fd) {
		p.fd = fd
	}
	return p
}

// NewReaderPrompter returns a prompter over r. Passwords are read as plain
// lines.
func NewReaderPrompter(r io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: out, fd: -1}
}

// Out returns the prompt writer.
func (p *Prompter) Out() io.Writer {
	return p.out
}

// IsTerminal reports whether input comes from a terminal.
func (p *Prompter) IsTerminal() bool {
	return p.fd >= 0
}

// ReadLine prints prompt and returns one line without its line ending.
// io.EOF is returned only when the input ended before any character.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(p.out, prompt)
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		if line == "" {
			return "", io.EOF
		}
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// ReadPassword prints prompt and reads a password.
func (p *Prompter) ReadPassword(prompt string) (string, error) {
	if p.fd < 0 {
		return p.ReadLine(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// ReadNewPassword asks for a password twice and requires both to match.
func (p *Prompter) ReadNewPassword(prompt, confirm string) (string, error) {
	first, err := p.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	second, err := p.ReadPassword(confirm)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrPasswordMismatch
	}
	return first, nil
}

// Confirm asks a yes/no question; anything but y or yes is no.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.ReadLine(question + " [y/N]: ")
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
