package output

import (
	"html"
	"regexp"
)

// palette maps [bold][hue] of an SGR foreground code to a CSS color.
var palette = [2][8]string{
	{"black", "darkred", "green", "orange", "darkblue", "purple", "lightblue", "lightgrey"},
	{"black", "red", "lightgreen", "yellow", "blue", "magenta", "cyan", "white"},
}

var (
	colorRE = regexp.MustCompile("\x1b\\[(0|1);3(.)m")
	resetRE = regexp.MustCompile("\x1b\\[0m")
	sgrRE   = regexp.MustCompile("\x1b\\[[0-9;]*m")
)

const (
	defaultOpen = "<span style='color: lightgrey;'>"
	resetSpan   = "</span><span style='color: lightgrey'>"
)

// ToHTML renders a terminal line as inline-styled markup: the line is shown
// in light grey, each recognised color code closes the current span and
// opens a colored one, and a reset reopens the default color. Unrecognised
// escape codes are dropped.
func ToHTML(line string) string {
	s := html.EscapeString(line)
	s = colorRE.ReplaceAllStringFunc(s, colorSpan)
	s = resetRE.ReplaceAllLiteralString(s, resetSpan)
	s = sgrRE.ReplaceAllLiteralString(s, "")
	return defaultOpen + s + "</span>"
}

func colorSpan(code string) string {
	m := colorRE.FindStringSubmatch(code)
	row := 0
	if m[1] == "1" {
		row = 1
	}
	if len(m[2]) != 1 || m[2][0] < '0' || m[2][0] > '7' {
		return ""
	}
	return "</span><span style='color: " + palette[row][m[2][0]-'0'] + "'>"
}

// StripANSI removes color codes from a terminal line.
func StripANSI(line string) string {
	return sgrRE.ReplaceAllLiteralString(line, "")
}
