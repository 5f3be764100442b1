// Package fingerprint reproduces the client-side identity hash on the
// server. The hash is best-effort and collidable: it is an input to the
// one-response-per-user limit, not a security boundary.
package fingerprint

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// Components are the client attributes hashed into a fingerprint, in the
// order the public form collects them.
type Components struct {
	UserAgent      string
	Language       string
	TimezoneOffset int
	CanvasData     string
	ScreenWidth    int
	ScreenHeight   int
	ColorDepth     int
}

// Hash joins the components with "|" and applies a 32-bit rolling hash
// over UTF-16 code units, formatted in base 36. This matches the
// browser-side algorithm exactly, including the sign of the result.
func (c Components) Hash() string {
	joined := strings.Join([]string{
		c.UserAgent,
		c.Language,
		strconv.Itoa(c.TimezoneOffset),
		c.CanvasData,
		strconv.Itoa(c.ScreenWidth),
		strconv.Itoa(c.ScreenHeight),
		strconv.Itoa(c.ColorDepth),
	}, "|")
	return Sum(joined)
}

// Sum hashes an arbitrary string with the client algorithm:
// h = (h<<5) - h + code, truncated to int32 at every step.
func Sum(s string) string {
	var h int32
	for _, code := range utf16.Encode([]rune(s)) {
		h = h<<5 - h + int32(code)
	}
	return strconv.FormatInt(int64(h), 36)
}
