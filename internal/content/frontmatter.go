// File path: internal/content/frontmatter.go
package content

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// FrontMatter carries the document fields the pipeline reads. Unknown keys
// are ignored.
type FrontMatter struct {
	Title string `yaml:"title"`
	Draft bool   `yaml:"draft"`
}

// ParseFrontMatter splits a markdown document into its YAML front matter and
// body. Documents without a front-matter block are returned unchanged with
// empty fields.
func ParseFrontMatter(raw string) (FrontMatter, string, error) {
	var fm FrontMatter
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontMatterDelimiter+"\n") {
		return fm, raw, nil
	}
	rest := normalized[len(frontMatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end < 0 {
		return fm, raw, nil
	}
	block := rest[:end]
	body := rest[end+len(frontMatterDelimiter)+1:]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return FrontMatter{}, "", fmt.Errorf("parse front matter: %w", err)
	}
	return fm, body, nil
}
