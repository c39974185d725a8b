package hazard

import "math"

// Grid maps floor coordinates onto the dense cell array shared by every frame.
type Grid struct {
	MinX     float64 `json:"minX" yaml:"minX"`
	MinZ     float64 `json:"minZ" yaml:"minZ"`
	CellSize float64 `json:"cellSize" yaml:"cellSize"`
	Width    int     `json:"width" yaml:"width"`
	Length   int     `json:"length" yaml:"length"`
}

// DefaultGrid covers a 50x50 m floor at half meter resolution starting at (-10,-10).
func DefaultGrid() Grid {
	return Grid{MinX: -10, MinZ: -10, CellSize: 0.5, Width: 100, Length: 100}
}

// Cells is the number of cells in the grid.
func (g Grid) Cells() int {
	return g.Width * g.Length
}

// Index returns the cell index for a floor position. ok is false outside the grid.
func (g Grid) Index(x, z float64) (idx int, ok bool) {
	if g.CellSize <= 0 {
		return 0, false
	}
	gx := math.Round((x - g.MinX) / g.CellSize)
	gz := math.Round((z - g.MinZ) / g.CellSize)
	if gx < 0 || gz < 0 || gx >= float64(g.Width) || gz >= float64(g.Length) {
		return 0, false
	}
	return int(gz)*g.Width + int(gx), true
}

// Center returns the floor coordinates of a cell.
func (g Grid) Center(idx int) (x, z float64) {
	gx := idx % g.Width
	gz := idx / g.Width
	return g.MinX + float64(gx)*g.CellSize, g.MinZ + float64(gz)*g.CellSize
}

func (g Grid) valid() bool {
	return g.CellSize > 0 && g.Width > 0 && g.Length > 0
}
