// Package console prints the startup banner each binary prints once on
// launch, adapted from the teacher's common/console package.
package console

import (
	"fmt"
	"strings"
)

// DefaultLineSize is the line size used by Title.
const DefaultLineSize = 80

// Line returns a single line, e.g. -------.
func Line(size int) string {
	return strings.Repeat("-", size)
}

// DoubleLine returns a doubled line, e.g. =======.
func DoubleLine(size int) string {
	return strings.Repeat("=", size)
}

// Title returns a title framed by double lines, e.g. ====== title ======.
func Title(title string) string {
	title = fmt.Sprintf(" %s ", title)
	startIndex := (DefaultLineSize / 2) - (len(title) / 2)
	delta := len(title) % 2

	return fmt.Sprintf("%s%s%s",
		DoubleLine(startIndex),
		title,
		DoubleLine(startIndex+delta))
}
