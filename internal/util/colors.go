package util

import (
	"github.com/fatih/color"
)

// ColorMap maps color names to terminal color attributes
var ColorMap = map[string]color.Attribute{
	"black":         color.FgBlack,
	"red":           color.FgRed,
	"green":         color.FgGreen,
	"yellow":        color.FgYellow,
	"blue":          color.FgBlue,
	"magenta":       color.FgMagenta,
	"cyan":          color.FgCyan,
	"white":         color.FgWhite,
	"brightred":     color.FgHiRed,
	"brightgreen":   color.FgHiGreen,
	"brightyellow":  color.FgHiYellow,
	"brightblue":    color.FgHiBlue,
	"brightmagenta": color.FgHiMagenta,
	"brightcyan":    color.FgHiCyan,
	"brightwhite":   color.FgHiWhite,
}

// GetTerminalColor returns a terminal color based on a color name
func GetTerminalColor(colorName string, defaultColor color.Attribute) *color.Color {
	if attr, ok := ColorMap[colorName]; ok {
		return color.New(attr)
	}
	return color.New(defaultColor)
}

// Theme holds the colors used to print history rows
type Theme struct {
	Incoming *color.Color
	Outgoing *color.Color
	Pending  *color.Color
	Date     *color.Color
	Address  *color.Color
	Comment  *color.Color
	Error    *color.Color
	Action   *color.Color
}

// ThemeColors names the colors of a Theme, e.g. as read from a flag
type ThemeColors struct {
	Incoming string
	Outgoing string
	Pending  string
	Date     string
}

// NewTheme resolves color names, falling back to the default palette
func NewTheme(names ThemeColors) Theme {
	return Theme{
		Incoming: GetTerminalColor(names.Incoming, color.FgGreen),
		Outgoing: GetTerminalColor(names.Outgoing, color.FgRed),
		Pending:  GetTerminalColor(names.Pending, color.FgYellow),
		Date:     GetTerminalColor(names.Date, color.FgHiBlue),
		Address:  color.New(color.FgCyan),
		Comment:  color.New(color.Faint),
		Error:    color.New(color.FgHiRed, color.Italic),
		Action:   color.New(color.FgMagenta, color.Bold),
	}
}

// Amount picks the color of a signed value
func (t Theme) Amount(value int64) *color.Color {
	if value < 0 {
		return t.Outgoing
	}
	return t.Incoming
}
