package financials

import (
	"strconv"
	"strings"
)

// CellReference builds an Excel-style A1-notation reference from a 1-based
// row/column pair, e.g. (5, 2) -> "B5", (1, 27) -> "AA1".
func CellReference(row, col int) string {
	return columnLetters(col) + strconv.Itoa(row)
}

func columnLetters(col int) string {
	var letters []byte
	for col > 0 {
		col--
		letters = append(letters, byte('A'+col%26))
		col /= 26
	}
	for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
		letters[i], letters[j] = letters[j], letters[i]
	}
	return strings.ToUpper(string(letters))
}
