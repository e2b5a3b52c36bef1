package board

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cyberinferno/minesweeper/cacher"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBoard builds a board with bombs at the given (x, y) pairs.
func newBoard(t *testing.T, width, height int, bombs ...[2]int) *Board {
	t.Helper()
	l, err := NewLayout(width, height)
	require.NoError(t, err)
	for _, p := range bombs {
		l.SetBomb(p[0], p[1])
	}

	b, err := New(l)
	require.NoError(t, err)
	return b
}

// requireCounts recomputes every neighbour count by brute force and compares
// it with the incrementally maintained value.
func requireCounts(t *testing.T, b *Board) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	bombs := 0
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			if b.cells[b.index(x, y)].bomb {
				bombs++
			}

			want := 0
			b.forEachNeighbor(x, y, func(nx, ny int) {
				if b.cells[b.index(nx, ny)].bomb {
					want++
				}
			})
			require.Equal(t, want, int(b.cells[b.index(x, y)].neighbors), "neighbour count at (%d,%d)", x, y)
		}
	}
	require.Equal(t, bombs, b.bombs)
}

func rows(r ...[]string) string {
	lines := make([]string, len(r))
	for i, cells := range r {
		lines[i] = strings.Join(cells, " ")
	}

	return strings.Join(lines, "\n")
}

func TestNew(t *testing.T) {
	t.Run("zero layout is rejected", func(t *testing.T) {
		_, err := New(Layout{})
		assert.ErrorIs(t, err, ErrInvalidSize)
	})

	t.Run("fresh board is untouched", func(t *testing.T) {
		b := newBoard(t, 3, 2, [2]int{0, 0})
		assert.Equal(t, 3, b.Width())
		assert.Equal(t, 2, b.Height())
		assert.NotEmpty(t, b.ID())
		assert.Equal(t, "- - -\n- - -", b.Render())
		assert.Equal(t, 1, b.BombsRemaining())
		assert.Equal(t, uint64(0), b.Revision())
		requireCounts(t, b)
	})

	t.Run("boards get distinct ids", func(t *testing.T) {
		assert.NotEqual(t, newBoard(t, 1, 1).ID(), newBoard(t, 1, 1).ID())
	})
}

func TestBoard_Dig(t *testing.T) {
	t.Run("out of range is a no-op", func(t *testing.T) {
		b := newBoard(t, 3, 1)
		for _, p := range [][2]int{{3, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			res := b.Dig(p[0], p[1])
			assert.Equal(t, DigResult{Outcome: NoChange}, res)
		}
		assert.Equal(t, "- - -", b.Render())
		assert.Equal(t, uint64(0), b.Revision())
	})

	t.Run("digging twice is idempotent", func(t *testing.T) {
		b := newBoard(t, 3, 1)

		first := b.Dig(2, 0)
		assert.Equal(t, DigResult{Outcome: Revealed}, first)
		assert.Equal(t, StatusDug, b.Status(2, 0))
		before := b.Render()
		rev := b.Revision()

		second := b.Dig(2, 0)
		assert.Equal(t, DigResult{Outcome: NoChange}, second)
		assert.Equal(t, StatusDug, b.Status(2, 0))
		assert.Equal(t, before, b.Render())
		assert.Equal(t, rev, b.Revision())
	})

	t.Run("flagged cell is not dug", func(t *testing.T) {
		b := newBoard(t, 3, 1, [2]int{2, 0})
		b.Flag(2, 0)

		assert.Equal(t, NoChange, b.Dig(2, 0).Outcome)
		assert.Equal(t, StatusFlagged, b.Status(2, 0))
		assert.Equal(t, 1, b.BombsRemaining())
	})

	t.Run("non-zero cell reveals only itself", func(t *testing.T) {
		b := newBoard(t, 3, 1, [2]int{2, 0})

		res := b.Dig(1, 0)
		assert.Equal(t, DigResult{Outcome: Revealed}, res)
		assert.Equal(t, "- 1 -", b.Render())
		requireCounts(t, b)
	})

	t.Run("flood fill spreads across zero cells", func(t *testing.T) {
		b := newBoard(t, 5, 5, [2]int{4, 1})

		res := b.Dig(2, 1)
		assert.Equal(t, DigResult{Outcome: Revealed}, res)
		assert.Equal(t, rows(
			[]string{" ", " ", " ", "1", "-"},
			[]string{" ", " ", " ", "1", "-"},
			[]string{" ", " ", " ", "1", "1"},
			[]string{" ", " ", " ", " ", " "},
			[]string{" ", " ", " ", " ", " "},
		), b.Render())
		assert.Equal(t, StatusUntouched, b.Status(4, 0))
		assert.Equal(t, StatusUntouched, b.Status(4, 1))
		requireCounts(t, b)
	})

	t.Run("bomb hit removes bomb and floods from the new count", func(t *testing.T) {
		b := newBoard(t, 5, 5, [2]int{4, 1})

		res := b.Dig(4, 1)
		assert.Equal(t, DigResult{Outcome: Revealed, Bomb: true}, res)
		assert.Equal(t, StatusDug, b.Status(4, 1))
		assert.Equal(t, 0, b.BombsRemaining())
		requireCounts(t, b)

		blank := []string{" ", " ", " ", " ", " "}
		assert.Equal(t, rows(blank, blank, blank, blank, blank), b.Render())
	})

	t.Run("bomb hit decrements every neighbour once", func(t *testing.T) {
		b := newBoard(t, 3, 3, [2]int{1, 1}, [2]int{0, 0})
		b.mu.Lock()
		before := make([]uint8, len(b.cells))
		for i, c := range b.cells {
			before[i] = c.neighbors
		}
		b.mu.Unlock()

		res := b.Dig(1, 1)
		assert.True(t, res.Bomb)
		requireCounts(t, b)

		b.mu.Lock()
		defer b.mu.Unlock()
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				i := b.index(x, y)
				if x == 1 && y == 1 {
					assert.Equal(t, before[i], b.cells[i].neighbors)
					continue
				}
				assert.Equal(t, before[i]-1, b.cells[i].neighbors, "(%d,%d)", x, y)
			}
		}
		// count is 1 (bomb at 0,0) so nothing else is revealed
		assert.Equal(t, "- - -\n- 1 -\n- - -", b.renderLocked())
	})

	t.Run("flood fill stops at flags", func(t *testing.T) {
		b := newBoard(t, 3, 1)
		b.Flag(0, 0)

		b.Dig(2, 0)
		assert.Equal(t, "F    ", b.Render())
		assert.Equal(t, StatusFlagged, b.Status(0, 0))
	})

	t.Run("large empty board floods without recursion", func(t *testing.T) {
		b := newBoard(t, 400, 400)
		b.Dig(0, 0)

		assert.Equal(t, StatusDug, b.Status(399, 399))
		assert.NotContains(t, b.Render(), "-")
	})
}

func TestBoard_FlagDeflag(t *testing.T) {
	t.Run("flag then deflag round trips", func(t *testing.T) {
		b := newBoard(t, 2, 2, [2]int{1, 1})
		before := b.Render()

		b.Flag(0, 0)
		assert.Equal(t, StatusFlagged, b.Status(0, 0))
		assert.Equal(t, "F -\n- -", b.Render())

		b.Deflag(0, 0)
		assert.Equal(t, StatusUntouched, b.Status(0, 0))
		assert.Equal(t, before, b.Render())
		requireCounts(t, b)
	})

	t.Run("flag is a no-op on dug and flagged cells", func(t *testing.T) {
		b := newBoard(t, 2, 1, [2]int{1, 0})
		b.Dig(0, 0)
		b.Flag(0, 0)
		assert.Equal(t, StatusDug, b.Status(0, 0))

		b.Flag(1, 0)
		rev := b.Revision()
		b.Flag(1, 0)
		assert.Equal(t, StatusFlagged, b.Status(1, 0))
		assert.Equal(t, rev, b.Revision())
	})

	t.Run("deflag is a no-op on untouched and dug cells", func(t *testing.T) {
		b := newBoard(t, 2, 1, [2]int{1, 0})
		b.Deflag(1, 0)
		assert.Equal(t, StatusUntouched, b.Status(1, 0))

		b.Dig(0, 0)
		b.Deflag(0, 0)
		assert.Equal(t, StatusDug, b.Status(0, 0))
	})

	t.Run("invalid coordinates are ignored", func(t *testing.T) {
		b := newBoard(t, 2, 1)
		b.Flag(5, 5)
		b.Deflag(-1, 0)
		assert.Equal(t, "- -", b.Render())
		assert.Equal(t, uint64(0), b.Revision())
	})
}

func TestBoard_Status(t *testing.T) {
	b := newBoard(t, 3, 1, [2]int{2, 0})
	b.Flag(1, 0)
	b.Dig(0, 0)

	assert.Equal(t, StatusDug, b.Status(0, 0))
	assert.Equal(t, StatusFlagged, b.Status(1, 0))
	assert.Equal(t, StatusUntouched, b.Status(2, 0))
	assert.Equal(t, StatusInvalid, b.Status(3, 0))

	assert.Equal(t, "dug", StatusDug.String())
	assert.Equal(t, "flagged", StatusFlagged.String())
	assert.Equal(t, "untouched", StatusUntouched.String())
	assert.Equal(t, "invalid cell", StatusInvalid.String())
}

func TestBoard_RenderCache(t *testing.T) {
	c := cacher.NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	l, err := NewLayout(3, 1)
	require.NoError(t, err)
	l.SetBomb(0, 0)
	b, err := New(l, WithRenderCache(c, time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	assert.Equal(t, "- - -", b.Render())
	assert.Equal(t, "- - -", b.Render())
	n, err := c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b.Flag(2, 0)
	n, err = c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "stale render is evicted on change")
	assert.Equal(t, "- - F", b.Render())

	b.Dig(1, 0)
	assert.Equal(t, "- 1 F", b.Render())
	n, err = c.ItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBoard_ConcurrentDigSameCell(t *testing.T) {
	for iter := 0; iter < 20; iter++ {
		b := newBoard(t, 4, 4, [2]int{3, 3})

		const players = 16
		results := make([]DigResult, players)
		renders := make([]string, players)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < players; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i] = b.Dig(0, 0)
				renders[i] = b.Render()
			}(i)
		}
		close(start)
		wg.Wait()

		revealed := 0
		for _, r := range results {
			if r.Outcome == Revealed {
				revealed++
			}
		}
		assert.Equal(t, 1, revealed)

		final := b.Render()
		for _, r := range renders {
			assert.Equal(t, final, r)
		}
	}
}

func TestBoard_ConcurrentMixedOperations(t *testing.T) {
	layout, err := RandomLayout(20, 15, 0.2, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := New(layout)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for iter := 0; iter < 500; iter++ {
				x, y := rng.Intn(22)-1, rng.Intn(17)-1
				switch rng.Intn(4) {
				case 0:
					b.Dig(x, y)
				case 1:
					b.Flag(x, y)
				case 2:
					b.Deflag(x, y)
				default:
					lines := strings.Split(b.Render(), "\n")
					if assert.Len(t, lines, 15) {
						for _, line := range lines {
							assert.Len(t, line, 20*2-1)
						}
					}
				}
			}
		}(int64(w))
	}
	wg.Wait()

	requireCounts(t, b)
}
