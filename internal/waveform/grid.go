package waveform

import (
	"math"
	"strings"
	"sync"
)

// GridSurface rasterizes paths onto a character grid for terminal display.
type GridSurface struct {
	mu     sync.Mutex
	cols   int
	rows   int
	cells  [][]rune
	pen    rune
	path   [][2]float64
	cursor [2]float64
}

func NewGridSurface(cols, rows int) *GridSurface {
	g := &GridSurface{cols: cols, rows: rows, pen: '•'}
	g.Clear()
	return g
}

func (g *GridSurface) Size() (float64, float64) { return float64(g.cols), float64(g.rows) }

func (g *GridSurface) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make([][]rune, g.rows)
	for r := range g.cells {
		g.cells[r] = []rune(strings.Repeat(" ", g.cols))
	}
}

func (g *GridSurface) BeginPath() {
	g.mu.Lock()
	g.path = g.path[:0]
	g.mu.Unlock()
}

func (g *GridSurface) MoveTo(x, y float64) {
	g.mu.Lock()
	g.cursor = [2]float64{x, y}
	g.path = append(g.path, [2]float64{math.NaN(), math.NaN()}, g.cursor)
	g.mu.Unlock()
}

func (g *GridSurface) LineTo(x, y float64) {
	g.mu.Lock()
	g.cursor = [2]float64{x, y}
	g.path = append(g.path, g.cursor)
	g.mu.Unlock()
}

// Stroke plots every segment of the current path.
func (g *GridSurface) Stroke() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 1; i < len(g.path); i++ {
		a, b := g.path[i-1], g.path[i]
		if math.IsNaN(a[0]) || math.IsNaN(b[0]) {
			continue
		}
		g.line(a[0], a[1], b[0], b[1])
	}
}

func (g *GridSurface) line(x0, y0, x1, y1 float64) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		g.plot(x0+(x1-x0)*t, y0+(y1-y0)*t)
	}
}

func (g *GridSurface) plot(x, y float64) {
	c, r := int(x), int(y)
	if c >= g.cols {
		c = g.cols - 1
	}
	if r >= g.rows {
		r = g.rows - 1
	}
	if c < 0 || r < 0 {
		return
	}
	g.cells[r][c] = g.pen
}

// String renders the grid, one line per row.
func (g *GridSurface) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	lines := make([]string, len(g.cells))
	for i, row := range g.cells {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}
