package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	cssOnce sync.Once
	cssData []byte
	cssErr  error

	chromaSelector = regexp.MustCompile(`(?m)^(/\*[^*]*\*/ )?\.chroma`)
)

// StyleCSS returns the highlighting stylesheet: the light style by default
// and the dark style under prefers-color-scheme: dark.
func StyleCSS() ([]byte, error) {
	cssOnce.Do(func() {
		var buf bytes.Buffer
		f := chromahtml.New(chromahtml.WithClasses(true))
		if err := f.WriteCSS(&buf, styles.Get(LightStyle)); err != nil {
			cssErr = fmt.Errorf("write %s css: %w", LightStyle, err)
			return
		}
		var dark bytes.Buffer
		if err := f.WriteCSS(&dark, styles.Get(DarkStyle)); err != nil {
			cssErr = fmt.Errorf("write %s css: %w", DarkStyle, err)
			return
		}
		buf.WriteString("@media (prefers-color-scheme: dark) {\n")
		buf.Write(chromaSelector.ReplaceAll(dark.Bytes(), []byte("$1:root .chroma")))
		buf.WriteString("}\n")
		cssData = buf.Bytes()
	})
	return cssData, cssErr
}
