package sidecar

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// decodeText converts raw sidecar bytes to a UTF-8 string. Detection is
// best-effort: byte-order marks first, then a NUL-byte heuristic for
// BOM-less UTF-16, valid UTF-8 as-is, and Latin-1 as the lossless last
// resort.
func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeWith(data, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM))
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeWith(data, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM))
	}

	if looksUTF16(data, 1) {
		return decodeWith(data, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM))
	}
	if looksUTF16(data, 0) {
		return decodeWith(data, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM))
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return decodeWith(data, charmap.ISO8859_1)
}

func decodeWith(data []byte, enc encoding.Encoding) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// looksUTF16 reports text whose high bytes are mostly NUL, sampled over
// the first 64 bytes. offset selects which byte of each 16-bit unit is
// the high byte: 1 for little endian, 0 for big endian.
func looksUTF16(data []byte, offset int) bool {
	if len(data) < 4 || len(data)%2 != 0 {
		return false
	}
	window := len(data)
	if window > 64 {
		window = 64
	}
	nuls := 0
	for i := offset; i < window; i += 2 {
		if data[i] == 0 {
			nuls++
		}
	}
	return nuls > window/4
}
