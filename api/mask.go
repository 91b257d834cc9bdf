package api

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Mask keeps the first half of s and replaces the rest with asterisks.
func Mask(s string) string {
	l := len(s)
	if l == 0 {
		return s
	}
	if l == 1 {
		return "*"
	}
	h := l / 2
	return s[0:h] + strings.Repeat("*", l-h)
}

// MaskURL returns u with the password and every query value masked. The
// input is returned masked whole when it does not parse.
func MaskURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return Mask(u)
	}
	var str strings.Builder
	if parsed.Scheme != "" {
		str.WriteString(parsed.Scheme)
		str.WriteString("://")
	}
	if parsed.User != nil {
		str.WriteString(parsed.User.Username())
		if pass, ok := parsed.User.Password(); ok {
			str.WriteString(":")
			str.WriteString(Mask(pass))
		}
		str.WriteString("@")
	}
	str.WriteString(parsed.Host)
	str.WriteString(parsed.Path)
	var qs []string
	for k, v := range parsed.Query() {
		qs = append(qs, k+"="+Mask(strings.Join(v, ",")))
	}
	sort.Strings(qs)
	if len(qs) > 0 {
		str.WriteString("?")
		str.WriteString(strings.Join(qs, "&"))
	}
	return str.String()
}

// String renders the tokens for logs with the cookie values masked.
func (t Tokens) String() string {
	return fmt.Sprintf("session=%s csrf=%s generation=%d", Mask(t.SessionID), Mask(t.CSRFToken), t.Generation)
}
