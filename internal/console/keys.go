package console

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jroimartin/gocui"
)

var namedKeys = map[string]gocui.Key{
	"f1":        gocui.KeyF1,
	"f2":        gocui.KeyF2,
	"f3":        gocui.KeyF3,
	"f4":        gocui.KeyF4,
	"f5":        gocui.KeyF5,
	"f6":        gocui.KeyF6,
	"f7":        gocui.KeyF7,
	"f8":        gocui.KeyF8,
	"f9":        gocui.KeyF9,
	"f10":       gocui.KeyF10,
	"f11":       gocui.KeyF11,
	"f12":       gocui.KeyF12,
	"up":        gocui.KeyArrowUp,
	"down":      gocui.KeyArrowDown,
	"left":      gocui.KeyArrowLeft,
	"right":     gocui.KeyArrowRight,
	"home":      gocui.KeyHome,
	"end":       gocui.KeyEnd,
	"pgup":      gocui.KeyPgup,
	"page_up":   gocui.KeyPgup,
	"pgdn":      gocui.KeyPgdn,
	"page_down": gocui.KeyPgdn,
	"ins":       gocui.KeyInsert,
	"insert":    gocui.KeyInsert,
	"del":       gocui.KeyDelete,
	"delete":    gocui.KeyDelete,
	"enter":     gocui.KeyEnter,
	"esc":       gocui.KeyEsc,
	"escape":    gocui.KeyEsc,
	"space":     gocui.KeySpace,
	"tab":       gocui.KeyTab,
	"backspace": gocui.KeyBackspace2,
	"ctrl_c":    gocui.KeyCtrlC,
}

// ParseKey converts a key identifier from the configuration to a value accepted by gocui.Gui.SetKeybinding.
// A single character is bound as a rune and is case sensitive. Longer names ("F1", "up", "space") are not.
func ParseKey(s string) (any, error) {
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		if r == ' ' {
			return gocui.KeySpace, nil
		}
		return r, nil
	}
	if k, ok := namedKeys[strings.ToLower(s)]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown key: %q", s)
}
