package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// ErrInvalidOption is returned for menu input that names no option.
var ErrInvalidOption = errors.New("invalid option")

// ProcessOption parses a 1-based menu choice out of n options and returns
// the 0-based index.
func ProcessOption(input string, n int) (int, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(input), 10, 32)
	if err != nil || v == 0 || int(v) > n {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOption, strings.TrimSpace(input))
	}
	return int(v) - 1, nil
}

// DisplayOptions prints options numbered from 1.
func DisplayOptions(w io.Writer, options []string) {
	num := color.New(color.FgCyan, color.Bold)
	for i, opt := range options {
		fmt.Fprintf(w, "%s %s\n", num.Sprintf("%d.", i+1), opt)
	}
}

// Choose prints title and options, reads one answer and returns the chosen
// 0-based index.
func (p *Prompter) Choose(title string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, ErrEmptyInput
	}
	if title != "" {
		color.New(color.Bold).Fprintln(p.out, title)
	}
	DisplayOptions(p.out, options)
	answer, err := p.ReadLine("> ")
	if err != nil {
		return 0, err
	}
	return ProcessOption(answer, len(options))
}
