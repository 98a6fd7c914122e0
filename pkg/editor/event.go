package editor

// EventType identifies the type of an input event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventResize
)

// Key represents a keyboard key.
type Key int

// Key constants for the keys the editor handles.
const (
	KeyNone Key = iota
	KeyRune     // Regular character (use Rune field)
	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlS
	KeyCtrlQ
)

// Event is one input event.
type Event struct {
	Type EventType

	// Key event fields
	Key  Key
	Rune rune

	// Resize event fields
	Width, Height int
}

// KeyEvent returns a key event for a special key.
func KeyEvent(k Key) Event {
	return Event{Type: EventKey, Key: k}
}

// RuneEvent returns a key event for a typed character.
func RuneEvent(r rune) Event {
	return Event{Type: EventKey, Key: KeyRune, Rune: r}
}

// ResizeEvent returns a resize event.
func ResizeEvent(width, height int) Event {
	return Event{Type: EventResize, Width: width, Height: height}
}

// Style selects how a span of text is drawn.
type Style int

const (
	StyleDefault Style = iota
	StyleStatusBar
	StyleMessage
	StyleFiller
)

// Screen is the drawing surface the editor renders to.
type Screen interface {
	// Size returns the screen size in cells.
	Size() (width, height int)
	// Clear blanks the back buffer.
	Clear()
	// DrawText draws text starting at cell (x, y), clipped to the screen.
	DrawText(x, y int, text string, style Style)
	// ShowCursor places the cursor at cell (x, y).
	ShowCursor(x, y int)
	// Show flushes the back buffer to the terminal.
	Show()
}

// KeySource delivers input events. PollEvent blocks until one is available;
// an error ends the editing loop.
type KeySource interface {
	PollEvent() (Event, error)
}
