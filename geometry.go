package main

import (
	"errors"
	"fmt"
	"math"
)

// probeSample is rendered to measure the average glyph. Its width divided by
// its length gives the cell width.
const probeSample = "qwertyuiopasdfghjklzxcvbnm"

// Fallback grid when the display can't be measured at all.
const (
	defaultCols = 80
	defaultRows = 24
)

var ErrInvalidCellSize = errors.New("cell size must be positive")

// Size is a width/height pair in display units.
type Size struct {
	Width  float64
	Height float64
}

// Viewport is the drawable area of the display. InCells is set when the
// display could not report pixels and Width/Height are already a grid.
type Viewport struct {
	Size
	InCells bool
}

// Display is the environment the terminal is drawn in.
type Display interface {
	Viewport() (Viewport, error)
	// Probe returns the rendered box of text in the terminal's font.
	Probe(sample string) (Size, error)
}

// CellSizer picks the glyph cell size used to turn a viewport into a grid.
type CellSizer interface {
	CellSize(d Display) (Size, error)
}

// MeasuredCells measures the cell from a probe rendering.
type MeasuredCells struct{}

func (MeasuredCells) CellSize(d Display) (Size, error) {
	box, err := d.Probe(probeSample)
	if err != nil {
		return Size{}, fmt.Errorf("probe cell size: %w", err)
	}
	return Size{
		Width:  box.Width / float64(len(probeSample)),
		Height: box.Height,
	}, nil
}

// FixedCells ignores the display and uses a constant cell.
type FixedCells struct {
	Width  float64
	Height float64
}

func (f FixedCells) CellSize(Display) (Size, error) {
	return Size{Width: f.Width, Height: f.Height}, nil
}

// DefaultFixedCells is the 10x17 cell some deployments hard-code.
var DefaultFixedCells = FixedCells{Width: 10, Height: 17}

// Offsets are subtracted from the viewport before dividing: padding and
// borders horizontally, the container's top offset vertically.
type Offsets struct {
	Horizontal float64
	Vertical   float64
}

// Geometry is a terminal grid.
type Geometry struct {
	Cols int
	Rows int
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Cols, g.Rows)
}

// GeometryCalculator composes a viewport measurement with a cell strategy.
type GeometryCalculator struct {
	Display Display
	Cells   CellSizer
	Offsets Offsets
}

// Compute measures the display and returns the grid that fits in it.
func (g *GeometryCalculator) Compute() (Geometry, error) {
	if g.Display == nil {
		return Geometry{}, errors.New("no display to measure")
	}
	vp, err := g.Display.Viewport()
	if err != nil {
		return Geometry{}, fmt.Errorf("measure viewport: %w", err)
	}

	// A grid-only display already is the answer; pixel offsets don't apply.
	if vp.InCells {
		return computeGeometry(vp.Size, Size{Width: 1, Height: 1}, Offsets{})
	}

	cells := g.Cells
	if cells == nil {
		cells = MeasuredCells{}
	}
	cell, err := cells.CellSize(g.Display)
	if err != nil {
		return Geometry{}, err
	}
	return computeGeometry(vp.Size, cell, g.Offsets)
}

// computeGeometry is floor((viewport - offset) / cell) on each axis, never
// below one cell.
func computeGeometry(viewport, cell Size, off Offsets) (Geometry, error) {
	if !validCellSide(cell.Width) || !validCellSide(cell.Height) {
		return Geometry{}, fmt.Errorf("%w: %gx%g", ErrInvalidCellSize, cell.Width, cell.Height)
	}
	cols := int(math.Floor((viewport.Width - off.Horizontal) / cell.Width))
	rows := int(math.Floor((viewport.Height - off.Vertical) / cell.Height))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return Geometry{Cols: cols, Rows: rows}, nil
}

func validCellSide(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// StaticDisplay reports fixed measurements.
type StaticDisplay struct {
	View Viewport
	Cell Size
}

func (s StaticDisplay) Viewport() (Viewport, error) {
	return s.View, nil
}

func (s StaticDisplay) Probe(sample string) (Size, error) {
	return Size{Width: s.Cell.Width * float64(len(sample)), Height: s.Cell.Height}, nil
}
