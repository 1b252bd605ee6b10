package report

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Color modes accepted by ShouldColor.
const (
	ColorAuto = "auto"
	ColorOn   = "on"
	ColorOff  = "off"
)

// ShouldColor resolves a color mode for output to f. In auto mode color is
// used only on a terminal and only when NO_COLOR is unset.
func ShouldColor(mode string, f *os.File) (bool, error) {
	switch mode {
	case ColorOn:
		return true, nil
	case ColorOff:
		return false, nil
	case ColorAuto, "":
	default:
		return false, fmt.Errorf("report: unknown color mode %q (auto|on|off)", mode)
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false, nil
	}
	return f != nil && term.IsTerminal(int(f.Fd())), nil
}

type palette struct {
	err, warn, info, path, dim, ok *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		err:  mk(color.FgRed, color.Bold),
		warn: mk(color.FgYellow),
		info: mk(color.FgCyan),
		path: mk(color.Bold),
		dim:  mk(color.Faint),
		ok:   mk(color.FgGreen),
	}
}
