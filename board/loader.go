package board

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Load reads a board description:
//
//	COLS ROWS
//	v v v ... (COLS values, each 0 or 1)
//	... (ROWS lines)
//
// Tokens are separated by spaces, lines end in "\n" or "\r\n", and trailing
// blank lines are allowed. Anything else yields ErrMalformedBoard.
//
// Parameters:
//   - r: Source of the board text
//
// Returns:
//   - The bomb layout described by r
//   - An error wrapping ErrMalformedBoard, or the read error
func Load(r io.Reader) (Layout, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Layout{}, fmt.Errorf("read board header: %w", err)
		}

		return Layout{}, fmt.Errorf("%w: missing header", ErrMalformedBoard)
	}

	header := strings.Fields(sc.Text())
	if len(header) != 2 {
		return Layout{}, fmt.Errorf("%w: header %q must be \"COLS ROWS\"", ErrMalformedBoard, sc.Text())
	}

	cols, err := parseSize(header[0])
	if err != nil {
		return Layout{}, err
	}

	rows, err := parseSize(header[1])
	if err != nil {
		return Layout{}, err
	}

	layout, err := NewLayout(cols, rows)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %w", ErrMalformedBoard, err)
	}

	for y := 0; y < rows; y++ {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return Layout{}, fmt.Errorf("read board row %d: %w", y, err)
			}

			return Layout{}, fmt.Errorf("%w: expected %d rows, got %d", ErrMalformedBoard, rows, y)
		}

		tokens := strings.Fields(sc.Text())
		if len(tokens) != cols {
			return Layout{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrMalformedBoard, y, len(tokens), cols)
		}

		for x, tok := range tokens {
			switch tok {
			case "1":
				layout.SetBomb(x, y)
			case "0":
			default:
				return Layout{}, fmt.Errorf("%w: row %d column %d: value %q is not 0 or 1", ErrMalformedBoard, y, x, tok)
			}
		}
	}

	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			return Layout{}, fmt.Errorf("%w: unexpected data after %d rows", ErrMalformedBoard, rows)
		}
	}

	if err := sc.Err(); err != nil {
		return Layout{}, fmt.Errorf("read board: %w", err)
	}

	return layout, nil
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string) (Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return Layout{}, fmt.Errorf("open board file: %w", err)
	}
	defer f.Close()

	layout, err := Load(f)
	if err != nil {
		return Layout{}, fmt.Errorf("load board file %s: %w", path, err)
	}

	return layout, nil
}

func parseSize(tok string) (int, error) {
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: size %q is not a non-negative integer", ErrMalformedBoard, tok)
		}
	}

	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q: %w", ErrMalformedBoard, tok, err)
	}

	return n, nil
}
