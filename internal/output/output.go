// Package output decides whether console output is coloured and provides the
// colour helpers the summary table uses
package output

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorMode represents the color output mode
type ColorMode int

const (
	// ColorAuto enables color on an interactive terminal outside CI
	ColorAuto ColorMode = iota
	// ColorAlways always enables color output
	ColorAlways
	// ColorNever never enables color output
	ColorNever
)

// ShouldUseColor determines if color output should be enabled based on the mode
func ShouldUseColor(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if os.Getenv("NO_COLOR") != "" {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
			return false
		}
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	default:
		return false
	}
}

// Palette colours status words without touching fatih/color's global state
type Palette struct {
	enabled bool
	pass    *color.Color
	fail    *color.Color
	header  *color.Color
}

// NewPalette returns a palette that colours only when enabled is true
func NewPalette(enabled bool) *Palette {
	p := &Palette{
		enabled: enabled,
		pass:    color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		header:  color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.header} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pass renders s as a success marker
func (p *Palette) Pass(s string) string {
	return p.pass.Sprint(s)
}

// Fail renders s as a failure marker
func (p *Palette) Fail(s string) string {
	return p.fail.Sprint(s)
}

// Header renders s as a table header
func (p *Palette) Header(s string) string {
	return p.header.Sprint(s)
}

// Enabled reports whether the palette emits escape codes
func (p *Palette) Enabled() bool {
	return p.enabled
}
