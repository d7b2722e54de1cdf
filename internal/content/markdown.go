// File path: internal/content/markdown.go
package content

import (
	"regexp"
	"strings"
)

// Converter turns markdown into the plain text handed to the chunker. The
// chunker still sees heading markers, so the default implementation keeps
// heading lines intact and strips everything else.
type Converter interface {
	Convert(markdown string) string
}

// PlainText is the default Converter. It removes code fences, images, link
// targets, emphasis markers, and inline HTML while preserving heading lines
// and prose.
type PlainText struct{}

var (
	codeFenceRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	emphasisRe   = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~]+)(\*{1,3}|_{1,3}|~~)`)
)

func (PlainText) Convert(markdown string) string {
	text := strings.ReplaceAll(markdown, "\r\n", "\n")
	text = codeFenceRe.ReplaceAllString(text, "")
	text = imageRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "$2")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			blank++
			if blank > 1 {
				continue
			}
			trimmed = ""
		} else {
			blank = 0
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
