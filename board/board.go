// Package board implements the shared Minesweeper grid. A Board is safe for
// concurrent use: every public method runs entirely inside one critical
// section, so a dig and its whole flood fill are never observed half applied.
package board

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cyberinferno/minesweeper/cacher"
	"github.com/google/uuid"
)

var (
	// ErrInvalidSize is returned when a board or layout has a non-positive dimension.
	ErrInvalidSize = errors.New("board dimensions must be positive")
	// ErrMalformedBoard is returned when board text does not follow the file grammar.
	ErrMalformedBoard = errors.New("malformed board")
)

// Status is the visible state of a cell as reported by Board.Status.
type Status uint8

const (
	StatusInvalid Status = iota // coordinates outside the board
	StatusUntouched
	StatusFlagged
	StatusDug
)

// String returns the status name used in logs and messages.
func (s Status) String() string {
	switch s {
	case StatusUntouched:
		return "untouched"
	case StatusFlagged:
		return "flagged"
	case StatusDug:
		return "dug"
	default:
		return "invalid cell"
	}
}

// Outcome says whether a dig changed the board.
type Outcome uint8

const (
	NoChange Outcome = iota
	Revealed
)

// DigResult is the result of Board.Dig. Bomb is true only when the dug cell
// itself held a bomb; cells revealed by the flood fill never report one.
type DigResult struct {
	Outcome Outcome
	Bomb    bool
}

type cell struct {
	bomb      bool
	neighbors uint8
	status    Status
}

type point struct {
	x, y int
}

// Option configures a Board at construction.
type Option func(*Board)

// WithRenderCache memoises Render output per board revision in c. Entries for
// superseded revisions are deleted as soon as the board changes.
//
// Parameters:
//   - c: Cache shared by any number of boards; keys are namespaced by board ID
//   - ttl: Lifetime of a cached render
func WithRenderCache(c cacher.Cacher[string], ttl time.Duration) Option {
	return func(b *Board) {
		b.renders = c
		b.renderTTL = ttl
	}
}

// Board is a fixed-size grid of cells. Cells are stored row-major in one
// slice and never handed out; callers only see Status values and renders.
type Board struct {
	id     string
	width  int
	height int

	mu       sync.Mutex
	cells    []cell
	bombs    int
	revision uint64

	renders   cacher.Cacher[string]
	renderTTL time.Duration
}

// New builds a board from layout. Neighbour counts are derived once here and
// from then on only adjusted incrementally.
//
// Parameters:
//   - layout: Initial bomb placement; copied, not retained
//   - opts: Optional settings such as WithRenderCache
//
// Returns:
//   - The board, or ErrInvalidSize for an empty layout
func New(layout Layout, opts ...Option) (*Board, error) {
	if layout.width <= 0 || layout.height <= 0 {
		return nil, ErrInvalidSize
	}

	b := &Board{
		id:     uuid.NewString(),
		width:  layout.width,
		height: layout.height,
		cells:  make([]cell, layout.width*layout.height),
	}

	for _, opt := range opts {
		opt(b)
	}

	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			if layout.HasBomb(x, y) {
				b.cells[b.index(x, y)].bomb = true
				b.bombs++
				b.adjustNeighbors(x, y, 1)
			}
		}
	}

	for i := range b.cells {
		b.cells[i].status = StatusUntouched
	}

	return b, nil
}

// ID returns the board's unique identifier.
func (b *Board) ID() string { return b.id }

// Width returns the number of columns.
func (b *Board) Width() int { return b.width }

// Height returns the number of rows.
func (b *Board) Height() int { return b.height }

// Dig digs (x, y). Out of range coordinates and cells that are not untouched
// are left alone and yield NoChange. Otherwise the cell becomes dug; if it held
// a bomb the bomb is removed and its neighbours' counts drop by one. Finally,
// if the cell's (new) count is zero, every untouched cell reachable through
// zero-count cells is dug as well.
//
// Parameters:
//   - x: Column
//   - y: Row
//
// Returns:
//   - The outcome and whether the dug cell held a bomb
func (b *Board) Dig(x, y int) DigResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.cellAt(x, y)
	if c == nil || c.status != StatusUntouched {
		return DigResult{Outcome: NoChange}
	}

	c.status = StatusDug
	hit := c.bomb
	if hit {
		c.bomb = false
		b.bombs--
		b.adjustNeighbors(x, y, -1)
	}

	b.floodFill(x, y)
	b.bumpRevision()

	return DigResult{Outcome: Revealed, Bomb: hit}
}

// Flag marks an untouched cell as flagged. Anything else is a no-op.
func (b *Board) Flag(x, y int) {
	b.transition(x, y, StatusUntouched, StatusFlagged)
}

// Deflag returns a flagged cell to untouched. Anything else is a no-op.
func (b *Board) Deflag(x, y int) {
	b.transition(x, y, StatusFlagged, StatusUntouched)
}

// Status reports the state of (x, y), or StatusInvalid when out of range.
func (b *Board) Status(x, y int) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.cellAt(x, y)
	if c == nil {
		return StatusInvalid
	}

	return c.status
}

// Revision returns a counter that increases with every state change.
func (b *Board) Revision() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revision
}

// BombsRemaining returns the number of bombs not yet dug up.
func (b *Board) BombsRemaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bombs
}

// Render returns the visible board: "-" untouched, "F" flagged, " " dug with no
// bomb neighbours, otherwise the neighbour count. Cells are separated by one
// space and rows by "\n", with nothing trailing.
func (b *Board) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.renders == nil {
		return b.renderLocked()
	}

	text, err := b.renders.GetOrFetch(context.Background(), b.renderKey(b.revision), b.renderTTL,
		func(context.Context) (string, error) {
			return b.renderLocked(), nil
		})
	if err != nil {
		return b.renderLocked()
	}

	return text
}

func (b *Board) transition(x, y int, from, to Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.cellAt(x, y)
	if c == nil || c.status != from {
		return
	}

	c.status = to
	b.bumpRevision()
}

// floodFill digs outward from the already dug (x, y). Caller must hold b.mu.
// Each cell is pushed at most once because it is marked dug when pushed.
func (b *Board) floodFill(x, y int) {
	stack := []point{{x, y}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b.cells[b.index(p.x, p.y)].neighbors != 0 {
			continue
		}

		b.forEachNeighbor(p.x, p.y, func(nx, ny int) {
			n := &b.cells[b.index(nx, ny)]
			if n.status == StatusUntouched {
				n.status = StatusDug
				stack = append(stack, point{nx, ny})
			}
		})
	}
}

func (b *Board) adjustNeighbors(x, y, delta int) {
	b.forEachNeighbor(x, y, func(nx, ny int) {
		n := &b.cells[b.index(nx, ny)]
		n.neighbors = uint8(int(n.neighbors) + delta)
	})
}

func (b *Board) forEachNeighbor(x, y int, fn func(nx, ny int)) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}

			nx, ny := x+dx, y+dy
			if b.contains(nx, ny) {
				fn(nx, ny)
			}
		}
	}
}

func (b *Board) bumpRevision() {
	stale := b.revision
	b.revision++
	if b.renders != nil {
		_ = b.renders.Delete(context.Background(), b.renderKey(stale))
	}
}

func (b *Board) renderLocked() string {
	var sb strings.Builder
	sb.Grow(b.width * b.height * 2)

	for y := 0; y < b.height; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}

		for x := 0; x < b.width; x++ {
			if x > 0 {
				sb.WriteByte(' ')
			}

			c := b.cells[b.index(x, y)]
			switch {
			case c.status == StatusUntouched:
				sb.WriteByte('-')
			case c.status == StatusFlagged:
				sb.WriteByte('F')
			case c.neighbors == 0:
				sb.WriteByte(' ')
			default:
				sb.WriteString(strconv.Itoa(int(c.neighbors)))
			}
		}
	}

	return sb.String()
}

func (b *Board) renderKey(revision uint64) string {
	return "board:" + b.id + ":render:" + strconv.FormatUint(revision, 10)
}

func (b *Board) cellAt(x, y int) *cell {
	if !b.contains(x, y) {
		return nil
	}

	return &b.cells[b.index(x, y)]
}

func (b *Board) contains(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

func (b *Board) index(x, y int) int {
	return y*b.width + x
}
