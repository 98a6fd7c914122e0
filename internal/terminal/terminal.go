// Package terminal adapts a tcell screen to the editor's Screen and
// KeySource interfaces.
package terminal

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/forest6511/cryptlog/pkg/editor"
)

// Terminal draws editor output to a tcell screen and reads its key events.
type Terminal struct {
	screen tcell.Screen
	mu     sync.Mutex
}

// New opens and initializes the controlling terminal.
func New() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(screen)
}

// NewWithScreen initializes screen and wraps it.
func NewWithScreen(screen tcell.Screen) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnablePaste()
	return &Terminal{screen: screen}, nil
}

// Close restores the terminal. A blocked PollEvent returns ErrStopped.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fini()
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
}

// DrawText draws text one grapheme cluster per cell group, clipped to the
// screen width.
func (t *Terminal) DrawText(x, y int, text string, style editor.Style) {
	t.mu.Lock()
	defer t.mu.Unlock()

	width, height := t.screen.Size()
	if y < 0 || y >= height {
		return
	}

	st := convertStyle(style)
	state := -1
	for text != "" && x < width {
		var cluster string
		var w int
		cluster, text, w, state = uniseg.FirstGraphemeClusterInString(text, state)
		if w == 0 {
			continue
		}
		if x >= 0 && x+w <= width {
			runes := []rune(cluster)
			t.screen.SetContent(x, y, runes[0], runes[1:], st)
		}
		x += w
	}
}

func (t *Terminal) ShowCursor(x, y int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.ShowCursor(x, y)
}

func (t *Terminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Show()
}

// PollEvent blocks for the next key or resize event. Events the editor does
// not use are skipped.
func (t *Terminal) PollEvent() (editor.Event, error) {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return editor.Event{}, editor.ErrStopped
		}
		if converted := convertEvent(ev); converted.Type != editor.EventNone {
			return converted, nil
		}
	}
}

func convertStyle(s editor.Style) tcell.Style {
	switch s {
	case editor.StyleStatusBar:
		return tcell.StyleDefault.Reverse(true)
	case editor.StyleMessage:
		return tcell.StyleDefault.Bold(true)
	case editor.StyleFiller:
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	default:
		return tcell.StyleDefault
	}
}

// convertEvent converts tcell events to editor events.
func convertEvent(ev tcell.Event) editor.Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		k := convertKey(e.Key())
		if k == editor.KeyNone {
			return editor.Event{}
		}
		if k == editor.KeyRune {
			return editor.RuneEvent(e.Rune())
		}
		return editor.KeyEvent(k)

	case *tcell.EventResize:
		w, h := e.Size()
		return editor.ResizeEvent(w, h)

	default:
		return editor.Event{}
	}
}

// convertKey converts a tcell key to the editor's Key type.
func convertKey(k tcell.Key) editor.Key {
	switch k {
	case tcell.KeyRune:
		return editor.KeyRune
	case tcell.KeyEscape:
		return editor.KeyEscape
	case tcell.KeyEnter:
		return editor.KeyEnter
	case tcell.KeyTab:
		return editor.KeyTab
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return editor.KeyBackspace
	case tcell.KeyDelete:
		return editor.KeyDelete
	case tcell.KeyHome:
		return editor.KeyHome
	case tcell.KeyEnd:
		return editor.KeyEnd
	case tcell.KeyPgUp:
		return editor.KeyPageUp
	case tcell.KeyPgDn:
		return editor.KeyPageDown
	case tcell.KeyUp:
		return editor.KeyUp
	case tcell.KeyDown:
		return editor.KeyDown
	case tcell.KeyLeft:
		return editor.KeyLeft
	case tcell.KeyRight:
		return editor.KeyRight
	case tcell.KeyCtrlS:
		return editor.KeyCtrlS
	case tcell.KeyCtrlQ:
		return editor.KeyCtrlQ
	default:
		return editor.KeyNone
	}
}
