package grammar

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DateVariable is the variable name bound to the configured date formats.
const DateVariable = "DATE"

var strftimeDirectives = map[byte]string{
	'Y': `\d{4}`,
	'y': `\d{2}`,
	'm': `\d{1,2}`,
	'd': `\d{1,2}`,
	'H': `\d{2}`,
	'M': `\d{2}`,
	'S': `\d{2}`,
	'b': `[A-Za-z]{3}`,
	'B': `[A-Za-z]+`,
	'%': `%`,
}

// DateFormatPattern converts one strftime-style format into a regex.
func DateFormatPattern(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteString(regexp.QuoteMeta(format[i : i+1]))
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("date format %q: dangling %%", format)
		}
		i++
		re, ok := strftimeDirectives[format[i]]
		if !ok {
			return "", fmt.Errorf("date format %q: unsupported directive %%%c", format, format[i])
		}
		b.WriteString(re)
	}
	return b.String(), nil
}

// DatePattern joins the patterns of all formats into one alternation,
// longest format first so "%Y.%m.%d" wins over "%m.%d".
func DatePattern(formats []string) (string, error) {
	if len(formats) == 0 {
		return "", nil
	}
	sorted := append([]string(nil), formats...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	alts := make([]string, 0, len(sorted))
	for _, f := range sorted {
		p, err := DateFormatPattern(f)
		if err != nil {
			return "", err
		}
		alts = append(alts, p)
	}
	return "(?:" + strings.Join(alts, "|") + ")", nil
}
