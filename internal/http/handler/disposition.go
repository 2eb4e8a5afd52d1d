package handler

import (
	"net/url"
	"strings"
	"unicode"
)

// contentDisposition renders an inline disposition for name. Control characters
// are dropped and quotes escaped so the filename cannot break the header; a
// non-ASCII name is also sent as an RFC 5987 filename* parameter.
func contentDisposition(name string) string {
	var (
		b        strings.Builder
		nonASCII bool
	)
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			continue
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r > unicode.MaxASCII:
			nonASCII = true
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		b.WriteString("document.pdf")
	}

	v := `inline; filename="` + b.String() + `"`
	if nonASCII {
		v += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return v
}
