package posts

import (
	"regexp"
	"strings"
)

var (
	fencePattern      = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern = regexp.MustCompile("`[^`]*`")
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	punctPattern      = regexp.MustCompile(`[#>*_~-]`)
)

// CountWords approximates the number of words in a Markdown body. Code,
// HTML tags and Markdown punctuation are dropped and the remaining
// whitespace-separated tokens counted. Runs of CJK text without spaces
// count as one token.
func CountWords(body string) int {
	s := fencePattern.ReplaceAllString(body, " ")
	s = inlineCodePattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	s = punctPattern.ReplaceAllString(s, " ")
	return len(strings.Fields(s))
}
