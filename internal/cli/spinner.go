package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// StartSpinner shows message next to a spinner on w while slow work runs,
// such as key derivation. The returned function stops it. Nothing is drawn
// when enabled is false or w is not a terminal.
func StartSpinner(w io.Writer, message string, enabled bool) func() {
	if !enabled {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	_ = s.Color("cyan")
	s.Start()
	return s.Stop
}
