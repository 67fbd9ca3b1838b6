// Package chunk splits document text into size-bounded pieces that are sent
// to the completion service one at a time.
//
// Splitting is purely positional: sizes are counted in characters (Unicode
// code points), so a chunk never ends inside a UTF-8 sequence, but it may end
// in the middle of a word or a name.
package chunk

import "unicode/utf8"

// DefaultSize is the maximum number of characters per chunk.
const DefaultSize = 3500

// Split partitions text into consecutive chunks of at most size characters.
// Every chunk except the last holds exactly size characters, and joining the
// chunks in order gives back text. Empty text yields no chunks.
// A non-positive size falls back to DefaultSize.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// Count returns how many chunks Split would produce for text.
func Count(text string, size int) int {
	if text == "" {
		return 0
	}
	if size <= 0 {
		size = DefaultSize
	}
	n := utf8.RuneCountInString(text)
	return (n + size - 1) / size
}
