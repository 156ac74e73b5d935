// Package markdown escapes text for Telegram's MarkdownV2 parse mode.
//
// See https://core.telegram.org/bots/api#markdownv2-style
package markdown

import (
	"regexp"
	"strings"
)

var (
	specialCharRegex = regexp.MustCompile(`[_*\[\]()~` + "`" + `>#+\-=|{}.!\\]`)
	codeCharRegex    = regexp.MustCompile("[`\\\\]")
)

// Escape escapes every MarkdownV2 special character. Inline code spans and code blocks
// are kept as code, only backticks and backslashes are escaped inside them.
// A span counts as code only when a run of the same number of backticks closes it
// and the content is not blank. Anything else is escaped as plain text.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)

	last := 0
	for i := 0; i < len(text); {
		if text[i] != '`' {
			i++
			continue
		}

		fence := backtickRun(text, i)
		if fence != 1 && fence != 3 {
			i += fence
			continue
		}
		end, ok := closingFence(text, i+fence, fence)
		if !ok {
			i += fence
			continue
		}

		b.WriteString(escapePlain(text[last:i]))
		b.WriteString(escapeCode(text[i:end], fence))
		last, i = end, end
	}
	b.WriteString(escapePlain(text[last:]))

	return b.String()
}

func escapePlain(text string) string {
	return specialCharRegex.ReplaceAllString(text, `\$0`)
}

func escapeCode(span string, fence int) string {
	inner := span[fence : len(span)-fence]
	return span[:fence] + codeCharRegex.ReplaceAllString(inner, `\$0`) + span[len(span)-fence:]
}

func backtickRun(text string, from int) int {
	n := 0
	for from+n < len(text) && text[from+n] == '`' {
		n++
	}
	return n
}

// closingFence finds the run of exactly fence backticks that closes a span opened before from.
// Inline spans may not cross a line break.
func closingFence(text string, from, fence int) (int, bool) {
	for j := from; j < len(text); {
		switch text[j] {
		case '\n':
			if fence == 1 {
				return 0, false
			}
			j++
		case '`':
			n := backtickRun(text, j)
			if n == fence {
				if strings.TrimSpace(text[from:j]) == "" {
					return 0, false
				}
				return j + n, true
			}
			j += n
		default:
			j++
		}
	}
	return 0, false
}
