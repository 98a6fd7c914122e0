// Package editor implements the interactive entry editor.
//
// The Editor owns a document.Document and turns input events into edit
// operations on it. Saving sends the serialized buffer as a Save message and
// marks the document saved; quitting sends Exit and stops the loop. A dirty
// buffer needs a second quit key press. A read-only editor has no sender and
// ignores edits and saves.
package editor

import (
	"errors"
	"time"

	"github.com/forest6511/cryptlog/pkg/document"
	"github.com/forest6511/cryptlog/pkg/session"
)

// Constants
const (
	TabWidth        = 4
	QuitTimes       = 2 // quit presses needed with unsaved changes
	MessageDuration = 5 * time.Second

	HelpMessage     = "HELP: Ctrl-S = save | Ctrl-Q = quit"
	ReadOnlyMessage = "READ ONLY: Ctrl-Q = quit"
)

// ErrStopped is returned by a KeySource that has no more events.
var ErrStopped = errors.New("editor: input stopped")

// State is the editor's save state.
type State int

const (
	StateClean State = iota
	StateDirty
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Editor is one interactive editing session over a document.
type Editor struct {
	doc      *document.Document
	sender   session.Sender
	readOnly bool

	cursor document.Position
	offset document.Position // first visible column and row
	width  int
	height int

	quitPresses int
	closing     bool

	message     string
	messageTime time.Time
	now         func() time.Time
}

// New returns an editor that sends Save/Exit messages to sender.
func New(doc *document.Document, sender session.Sender) *Editor {
	e := &Editor{
		doc:    doc,
		sender: sender,
		now:    time.Now,
	}
	e.setMessage(HelpMessage)
	return e
}

// NewReadOnly returns an editor that only navigates doc.
func NewReadOnly(doc *document.Document) *Editor {
	e := &Editor{
		doc:      doc,
		readOnly: true,
		now:      time.Now,
	}
	e.setMessage(ReadOnlyMessage)
	return e
}

// Document returns the edited document.
func (e *Editor) Document() *document.Document {
	return e.doc
}

// Cursor returns the cursor position.
func (e *Editor) Cursor() document.Position {
	return e.cursor
}

// Message returns the current status message.
func (e *Editor) Message() string {
	return e.message
}

// ReadOnly reports whether edits are disabled.
func (e *Editor) ReadOnly() bool {
	return e.readOnly
}

// State returns the save state.
func (e *Editor) State() State {
	switch {
	case e.closing:
		return StateClosing
	case e.doc.IsDirty():
		return StateDirty
	default:
		return StateClean
	}
}

// Closed reports whether the editor has quit.
func (e *Editor) Closed() bool {
	return e.closing
}

// Run draws to screen and handles events from keys until the editor quits
// or keys fails. ErrStopped from keys ends the loop without error.
func (e *Editor) Run(screen Screen, keys KeySource) error {
	e.width, e.height = screen.Size()
	for !e.closing {
		e.Render(screen)

		ev, err := keys.PollEvent()
		if err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
		e.Handle(ev)
	}
	return nil
}

// Handle applies one input event.
func (e *Editor) Handle(ev Event) {
	if e.closing {
		return
	}

	switch ev.Type {
	case EventResize:
		e.width, e.height = ev.Width, ev.Height
		e.scroll()
		return
	case EventKey:
	default:
		return
	}

	if ev.Key != KeyCtrlQ {
		e.quitPresses = 0
	}

	switch ev.Key {
	case KeyCtrlQ:
		e.quit()
	case KeyCtrlS:
		e.save()
	case KeyRune:
		e.insert(ev.Rune)
	case KeyTab:
		for i := 0; i < TabWidth; i++ {
			e.insert(' ')
		}
	case KeyEnter:
		e.insert('\n')
	case KeyBackspace:
		e.backspace()
	case KeyDelete:
		e.delete()
	case KeyUp, KeyDown, KeyLeft, KeyRight, KeyHome, KeyEnd, KeyPageUp, KeyPageDown:
		e.move(ev.Key)
	}
	e.scroll()
}

func (e *Editor) quit() {
	if e.doc.IsDirty() && !e.readOnly {
		e.quitPresses++
		if e.quitPresses < QuitTimes {
			e.setMessage("WARNING! File has unsaved changes. Press Ctrl-Q again to quit.")
			return
		}
	}
	e.closing = true
	if e.sender != nil {
		e.sender.Send(session.ExitMessage())
	}
}

func (e *Editor) save() {
	if e.readOnly || e.sender == nil {
		e.setMessage("Entry is read only.")
		return
	}
	e.sender.Send(session.SaveMessage(e.doc.Bytes()))
	e.doc.MarkSaved()
	e.setMessage("Entry saved.")
}

func (e *Editor) insert(c rune) {
	if e.readOnly {
		return
	}
	e.doc.Insert(e.cursor, c)
	if c == '\n' {
		e.cursor = document.Position{X: 0, Y: e.cursor.Y + 1}
		return
	}
	e.cursor.X++
}

// backspace deletes the character left of the cursor; at column 0 it joins
// the row onto the previous one.
func (e *Editor) backspace() {
	if e.readOnly {
		return
	}
	if e.cursor.X == 0 && e.cursor.Y == 0 {
		return
	}
	if e.cursor.Y >= e.doc.Len() && e.cursor.X == 0 {
		// the virtual line after the last row holds nothing to join
		e.move(KeyLeft)
		return
	}
	e.move(KeyLeft)
	e.doc.Delete(e.cursor)
}

func (e *Editor) delete() {
	if e.readOnly {
		return
	}
	e.doc.Delete(e.cursor)
}

func (e *Editor) rowLen(y int) int {
	if row := e.doc.Row(y); row != nil {
		return row.Len()
	}
	return 0
}

func (e *Editor) textHeight() int {
	if h := e.height - 2; h > 0 {
		return h
	}
	return 1
}

func (e *Editor) move(k Key) {
	x, y := e.cursor.X, e.cursor.Y
	last := e.doc.Len() // the line after the last row is addressable

	switch k {
	case KeyUp:
		if y > 0 {
			y--
		}
	case KeyDown:
		if y < last {
			y++
		}
	case KeyLeft:
		if x > 0 {
			x--
		} else if y > 0 {
			y--
			x = e.rowLen(y)
		}
	case KeyRight:
		if x < e.rowLen(y) {
			x++
		} else if y < last {
			y++
			x = 0
		}
	case KeyHome:
		x = 0
	case KeyEnd:
		x = e.rowLen(y)
	case KeyPageUp:
		y -= e.textHeight()
		if y < 0 {
			y = 0
		}
	case KeyPageDown:
		y += e.textHeight()
		if y > last {
			y = last
		}
	}

	if n := e.rowLen(y); x > n {
		x = n
	}
	e.cursor = document.Position{X: x, Y: y}
}

// scroll keeps the cursor inside the visible window.
func (e *Editor) scroll() {
	if e.cursor.Y < e.offset.Y {
		e.offset.Y = e.cursor.Y
	}
	if h := e.textHeight(); e.cursor.Y >= e.offset.Y+h {
		e.offset.Y = e.cursor.Y - h + 1
	}
	if e.cursor.X < e.offset.X {
		e.offset.X = e.cursor.X
	}
	if e.width > 0 && e.cursor.X >= e.offset.X+e.width {
		e.offset.X = e.cursor.X - e.width + 1
	}
}

func (e *Editor) setMessage(msg string) {
	e.message = msg
	e.messageTime = e.now()
}
