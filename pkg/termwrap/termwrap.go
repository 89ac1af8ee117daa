// Package termwrap fits help text and listings to the terminal width.
package termwrap

import (
	"os"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

type TermWrap struct {
	width int
}

// NewTermWrap measures stdout, falling back to defaultWidth when it is not a
// terminal (e.g. piped or running under the daemon).
func NewTermWrap(defaultWidth int) *TermWrap {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = defaultWidth
	}

	return &TermWrap{width: width}
}

func (tw *TermWrap) Width() int {
	return tw.width
}

func (tw *TermWrap) Paragraph(content string) string {
	return wordwrap.WrapString(content, uint(tw.width))
}

// IndentedParagraph wraps content to the width remaining after prefix and
// prefixes every line. Narrow terminals never wrap below minimumWidth.
func (tw *TermWrap) IndentedParagraph(prefix, content string, minimumWidth int) string {
	width := tw.width - len(prefix)
	if width < minimumWidth {
		width = minimumWidth
	}

	lines := strings.Split(wordwrap.WrapString(content, uint(width)), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}

	return strings.Join(lines, "\n") + "\n"
}
