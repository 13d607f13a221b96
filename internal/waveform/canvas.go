package waveform

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// DefaultColor is the stroke used when no valid color is given
const DefaultColor = "#1E63D6"

// hexColor accepts #rgb, #rgba, #rrggbb and #rrggbbaa
var hexColor = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3,4}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

// Canvas is an in-memory Surface that records the lines drawn on it.
// The web UI mirrors it; the SVG endpoint renders it.
type Canvas struct {
	mu     sync.RWMutex
	width  float64
	height float64
	lines  []Line
}

// NewCanvas creates a canvas of the given size
func NewCanvas(width, height float64) *Canvas {
	return &Canvas{
		width:  width,
		height: height,
	}
}

// Size returns the canvas dimensions
func (c *Canvas) Size() (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// Resize changes the canvas dimensions. The owner should redraw afterwards.
func (c *Canvas) Resize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
}

// Clear removes all lines
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = c.lines[:0]
}

// DrawLine records a line. Only vertical lines are produced by the renderer,
// so x1 is ignored.
func (c *Canvas) DrawLine(x0, y0, x1, y1 float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, Line{X: x0, Y0: y0, Y1: y1})
}

// Lines returns a copy of the lines drawn since the last Clear
func (c *Canvas) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Line, len(c.lines))
	copy(result, c.lines)
	return result
}

// SVG renders a frame as a standalone SVG document.
// Anything but a hex color falls back to DefaultColor.
func SVG(frame Frame, color string) string {
	if !hexColor.MatchString(color) {
		color = DefaultColor
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`,
		frame.Width, frame.Height, frame.Width, frame.Height)
	sb.WriteString("\n")
	for _, l := range frame.Lines {
		fmt.Fprintf(&sb, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="4"/>`,
			l.X, l.Y0, l.X, l.Y1, color)
		sb.WriteString("\n")
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}
