// Textual call extractor for templates and non-Go sources (PHP, Blade,
// JavaScript, Vue, Twig ...).

package extract

import (
	"os"
	"regexp"
	"sort"
	"strings"
)

// callPattern builds a regexp matching `fn(` followed by an opening quote
// for any of the given function names. Longer names come first so that
// trans_choice is preferred over trans.
func callPattern(functions []string) *regexp.Regexp {
	if len(functions) == 0 {
		return nil
	}
	names := append([]string(nil), functions...)
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	alts := make([]string, len(names))
	for i, n := range names {
		alts[i] = regexp.QuoteMeta(n)
	}
	// Group 1: function name. Group 2: opening quote.
	return regexp.MustCompile(`(?m)(?:^|[^\w>])(` + strings.Join(alts, "|") + `)\(\s*(['"])`)
}

func (s *Scanner) scanTextFile(path string, c *collector) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	extractCalls(s.call, string(data), c)
	return nil
}

// extractCalls finds every matching call in src and records its literal.
func extractCalls(re *regexp.Regexp, src string, c *collector) {
	if re == nil {
		return
	}
	for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
		fn := src[m[2]:m[3]]
		quote := src[m[4]]
		literal, end, ok := readQuoted(src, m[5], quote)
		if !ok {
			continue
		}
		if !closesArgument(src, end) {
			continue
		}
		c.add(fn, literal)
	}
}

// readQuoted reads a quoted literal starting right after the opening quote
// at start. It returns the unescaped value and the index just past the
// closing quote.
func readQuoted(src string, start int, quote byte) (string, int, bool) {
	var b strings.Builder
	for i := start; i < len(src); i++ {
		ch := src[i]
		switch {
		case ch == '\\' && i+1 < len(src):
			next := src[i+1]
			if next == quote || next == '\\' {
				b.WriteByte(next)
			} else {
				b.WriteByte(ch)
				b.WriteByte(next)
			}
			i++
		case ch == quote:
			return b.String(), i + 1, true
		default:
			b.WriteByte(ch)
		}
	}
	return "", 0, false
}

// closesArgument reports whether the literal ending at i is a whole
// argument, i.e. followed by optional whitespace and `)` or `,`.
func closesArgument(src string, i int) bool {
	for ; i < len(src); i++ {
		switch src[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case ')', ',':
			return true
		default:
			return false
		}
	}
	return false
}
