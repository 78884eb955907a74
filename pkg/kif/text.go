package kif

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyEncodings are tried in order when a file is not UTF-8.
var legacyEncodings = []encoding.Encoding{
	japanese.ShiftJIS,
	japanese.EUCJP,
}

// DecodeText converts raw KIF bytes to a string. UTF-8 (with or without a
// BOM) is returned as is; otherwise Shift-JIS and then EUC-JP are tried,
// rejecting any decode that needed replacement characters.
func DecodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, enc := range legacyEncodings {
		reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
		decoded, err := io.ReadAll(reader)
		if err != nil {
			continue
		}
		if !utf8.Valid(decoded) || bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), nil
	}
	return "", ErrUndecodableText
}

// SplitLines splits text on newlines and strips carriage returns.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines
}
