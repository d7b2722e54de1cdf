// File path: internal/content/content.go
package content

// Language tags carried through indexing and retrieval. Any path that does
// not start with the English marker is treated as Chinese, including paths
// with no language segment at all.
const (
	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

const (
	chineseMarker  = "zh"
	englishMarker  = "en"
	blogSegment    = "blog"
	markdownSuffix = ".md"
)

// staticSections are the single-instance pages that exist once per site.
// Only their Chinese variant is ever indexed.
var staticSections = []string{"about", "contact", "community"}

// Document is a markdown file discovered under the content root, annotated
// with the front-matter fields the pipeline cares about.
type Document struct {
	SourcePath string
	Language   string
	URL        string
	Title      string
	Draft      bool
	Body       string
}
