// File path: internal/content/chunker.go
package content

import (
	"strings"
)

// DefaultMaxChunkLen bounds chunk size in runes. Bilingual text makes byte
// counts misleading, so lengths are measured in runes throughout.
const DefaultMaxChunkLen = 1000

// sentence-terminal runes for both Chinese and Latin prose.
var sentenceTerminators = map[rune]bool{
	'。': true, '！': true, '？': true, '；': true,
	'.': true, '!': true, '?': true, ';': true,
	'\n': true,
}

// Chunk splits plain text into ordered chunks of at most maxLen runes.
//
// The text is first split on markdown heading markers; a section that fits
// within maxLen becomes a single chunk, while longer sections accumulate
// sentence-bounded segments and flush whenever the next segment would exceed
// the limit. A single sentence longer than maxLen is emitted whole rather
// than split mid-sentence. The function is deterministic and keeps no state
// between calls.
func Chunk(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLen
	}
	var chunks []string
	for _, section := range splitSections(text) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if runeLen(section) <= maxLen {
			chunks = append(chunks, section)
			continue
		}
		chunks = append(chunks, chunkSection(section, maxLen)...)
	}
	return chunks
}

// splitSections cuts the input at markdown heading lines. Input without any
// heading is treated as a single section.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")
	var sections []string
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		sections = append(sections, strings.Join(current, "\n"))
		current = current[:0]
	}
	for _, line := range lines {
		if isHeading(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()
	if len(sections) == 0 {
		return []string{text}
	}
	return sections
}

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	rest := strings.TrimLeft(trimmed, "#")
	return rest == "" || strings.HasPrefix(rest, " ")
}

// chunkSection accumulates sentence-bounded segments into chunks of at most
// maxLen runes, flushing before a segment that would overflow the buffer.
func chunkSection(section string, maxLen int) []string {
	var chunks []string
	var buffer strings.Builder
	bufferLen := 0

	flush := func() {
		trimmed := strings.TrimSpace(buffer.String())
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		buffer.Reset()
		bufferLen = 0
	}

	for _, segment := range splitSentences(section) {
		segLen := runeLen(segment)
		if bufferLen > 0 && bufferLen+segLen > maxLen {
			flush()
		}
		buffer.WriteString(segment)
		bufferLen += segLen
	}
	flush()
	return chunks
}

// splitSentences cuts text after sentence-terminal punctuation, keeping the
// terminator with the preceding segment.
func splitSentences(text string) []string {
	var segments []string
	var current []rune
	for _, r := range text {
		current = append(current, r)
		if sentenceTerminators[r] {
			segments = append(segments, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		segments = append(segments, string(current))
	}
	return segments
}

func runeLen(s string) int {
	return len([]rune(s))
}
