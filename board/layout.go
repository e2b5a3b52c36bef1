package board

import (
	"fmt"
	"math/rand"
)

const (
	// DefaultSize is the width and height of a generated board when none is given.
	DefaultSize = 12
	// DefaultBombProbability is the chance that any one cell of a generated board holds a bomb.
	DefaultBombProbability = 0.25
	// MaxCells caps width*height for any layout.
	MaxCells = 1 << 24
)

// Layout is an initial bomb placement for a board of fixed size. It is a plain
// value used only during construction; a Board copies it and never shares it.
type Layout struct {
	width  int
	height int
	bombs  []bool
}

// NewLayout returns an empty width x height layout.
//
// Parameters:
//   - width: Number of columns, must be positive
//   - height: Number of rows, must be positive
//
// Returns:
//   - The layout, or ErrInvalidSize when a dimension is not positive or the
//     board would exceed MaxCells
func NewLayout(width, height int) (Layout, error) {
	if err := ValidateSize(width, height); err != nil {
		return Layout{}, err
	}

	return Layout{width: width, height: height, bombs: make([]bool, width*height)}, nil
}

// ValidateSize reports whether a width x height board can be built.
func ValidateSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if width > MaxCells/height {
		return fmt.Errorf("%w: %dx%d exceeds %d cells", ErrInvalidSize, width, height, MaxCells)
	}

	return nil
}

// RandomLayout returns a layout where every cell independently holds a bomb
// with the given probability.
//
// Parameters:
//   - width, height: Board dimensions, both positive
//   - probability: Chance of a bomb per cell, in [0, 1]
//   - rng: Source of randomness; nil uses the package-level generator
//
// Returns:
//   - The layout, or an error for a bad size or probability
func RandomLayout(width, height int, probability float64, rng *rand.Rand) (Layout, error) {
	if probability < 0 || probability > 1 {
		return Layout{}, fmt.Errorf("bomb probability %v out of range [0,1]", probability)
	}

	l, err := NewLayout(width, height)
	if err != nil {
		return Layout{}, err
	}

	roll := rand.Float64
	if rng != nil {
		roll = rng.Float64
	}

	for i := range l.bombs {
		l.bombs[i] = roll() < probability
	}

	return l, nil
}

// Width returns the number of columns.
func (l Layout) Width() int { return l.width }

// Height returns the number of rows.
func (l Layout) Height() int { return l.height }

// SetBomb places a bomb at (x, y). Out of range coordinates are ignored.
func (l Layout) SetBomb(x, y int) {
	if l.contains(x, y) {
		l.bombs[y*l.width+x] = true
	}
}

// HasBomb reports whether (x, y) holds a bomb; false when out of range.
func (l Layout) HasBomb(x, y int) bool {
	return l.contains(x, y) && l.bombs[y*l.width+x]
}

// BombCount returns the number of bombs placed.
func (l Layout) BombCount() int {
	n := 0
	for _, b := range l.bombs {
		if b {
			n++
		}
	}

	return n
}

func (l Layout) contains(x, y int) bool {
	return x >= 0 && x < l.width && y >= 0 && y < l.height
}
