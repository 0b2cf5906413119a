package chunker

import "strings"

// CountWords gives a rough word count of chunk text, used in build logs.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
