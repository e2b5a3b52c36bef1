package game

import "fmt"

const (
	// BoomMessage is sent instead of a board when a dig hits a bomb. No rendered
	// row can equal it.
	BoomMessage = "BOOM!"

	// HelpMessage is the reply to help and to any line outside the grammar.
	HelpMessage = "Please send one of: look | help | bye | dig X Y | flag X Y | deflag X Y " +
		"(X is the column, Y is the row, both counted from 0 at the top left)"
)

// WelcomeMessage returns the greeting sent before any command is read.
//
// Parameters:
//   - players: Connected players, including the new one
//   - cols: Board width
//   - rows: Board height
func WelcomeMessage(players, cols, rows int) string {
	return fmt.Sprintf("Welcome to Minesweeper. Players: %d including you. Board: %d columns by %d rows. Type 'help' for help.",
		players, cols, rows)
}
