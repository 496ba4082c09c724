package sidecar

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/starford/odal/internal/models"
)

// parsePayload dispatches to the content-format parser for the rule.
func parsePayload(path, format string) (interface{}, error) {
	switch format {
	case FormatJSON:
		return parseJSON(path)
	case FormatHashList:
		return parseHashList(path)
	case FormatText, FormatSubtitle:
		return parseText(path)
	case FormatLink:
		return parseLink(path)
	case FormatBinary:
		return parseBinary(path)
	}
	return nil, fmt.Errorf("sidecar: unknown format %q", format)
}

// parseJSON reads the sidecar as JSON, tolerating comments and trailing
// commas the way hand-edited metadata files tend to accumulate them.
func parseJSON(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sidecar: read %s: %w", path, err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &payload); err != nil {
		return nil, fmt.Errorf("sidecar: parse %s: %w", path, err)
	}
	return payload, nil
}

// parseHashList parses a checksum manifest into an algorithm→digest
// map. Supported line shapes:
//
//	<hex>  <filename>          (GNU coreutils)
//	ALG (<filename>) = <hex>   (BSD)
//	<filename> <crc32>         (SFV, by .sfv extension)
//	<hex>                      (bare digest)
//
// The algorithm is taken from the manifest's extension when it names
// one, otherwise inferred from digest length. The result is used as a
// cross-check against computed hashes, never as a replacement.
func parseHashList(path string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sidecar: read %s: %w", path, err)
	}
	defer f.Close()

	isSFV := strings.EqualFold(filepath.Ext(path), ".sfv")
	extAlg := algorithmFromExt(filepath.Ext(path))
	out := make(models.HashSet)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		var alg, digest string
		if isSFV {
			alg, digest = parseSFVLine(line)
		} else {
			alg, digest = parseHashLine(line, extAlg)
		}
		if digest == "" {
			continue
		}
		if _, dup := out[alg]; !dup {
			out[alg] = digest
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("sidecar: scan %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sidecar: %s: no digests found", path)
	}
	return out, nil
}

func parseHashLine(line, extAlg string) (alg, digest string) {
	// BSD form: "SHA256 (file) = <hex>".
	if i := strings.Index(line, " = "); i > 0 {
		head := line[:i]
		if j := strings.Index(head, " ("); j > 0 {
			alg = strings.ToLower(head[:j])
			digest = normalizeDigest(line[i+3:])
			return alg, digest
		}
	}
	// Coreutils form: digest first, optional "  filename" tail. A "*"
	// prefix on the filename marks binary mode.
	fields := strings.Fields(line)
	digest = normalizeDigest(fields[0])
	if digest == "" {
		return "", ""
	}
	alg = extAlg
	if alg == "" {
		alg = algorithmFromLength(len(digest))
	}
	if alg == "" {
		return "", ""
	}
	return alg, digest
}

// parseSFVLine reads the simple-file-verification shape: the filename
// first, the CRC-32 as the last field, eight hex digits.
func parseSFVLine(line string) (alg, digest string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", ""
	}
	digest = normalizeDigest(fields[len(fields)-1])
	if len(digest) != 8 {
		return "", ""
	}
	return "crc32", digest
}

func normalizeDigest(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, err := hex.DecodeString(s); err != nil || s == "" {
		return ""
	}
	return s
}

func algorithmFromExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md5":
		return "md5"
	case "sha1":
		return "sha1"
	case "sha256":
		return "sha256"
	case "sha512":
		return "sha512"
	case "blake3":
		return "blake3"
	}
	return ""
}

func algorithmFromLength(hexLen int) string {
	switch hexLen {
	case 32:
		return "md5"
	case 40:
		return "sha1"
	case 64:
		return "sha256"
	case 128:
		return "sha512"
	}
	return ""
}

// parseText reads the sidecar as text with best-effort encoding
// detection (UTF BOMs, UTF-16 heuristics, Latin-1 fallback).
func parseText(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sidecar: read %s: %w", path, err)
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("sidecar: decode %s: %w", path, err)
	}
	return text, nil
}

// parseLink resolves the sidecar's target. A symbolic link resolves via
// readlink; a plain-text target (.url style "URL=" lines or a bare
// path) is returned as text; anything else is retained opaque,
// base64-encoded.
func parseLink(path string) (interface{}, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err == nil {
			return map[string]interface{}{"target": target}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sidecar: read %s: %w", path, err)
	}
	if target := textLinkTarget(data); target != "" {
		return map[string]interface{}{"target": target}, nil
	}
	return map[string]interface{}{
		"encoding": "base64",
		"data":     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// textLinkTarget extracts a target from .url-style "URL=" lines or a
// single-line plain-text path, returning "" when the content is not
// representable as text.
func textLinkTarget(data []byte) string {
	text, err := decodeText(data)
	if err != nil || strings.ContainsRune(text, 0) {
		return ""
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "URL="); ok {
			return strings.TrimSpace(rest)
		}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && !strings.ContainsAny(trimmed, "\n\r") && !bytes.ContainsAny(data, "\x00") {
		return trimmed
	}
	return ""
}

// parseBinary retains opaque content (thumbnails and the like)
// base64-encoded, alongside its byte length.
func parseBinary(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sidecar: read %s: %w", path, err)
	}
	return map[string]interface{}{
		"encoding": "base64",
		"length":   len(data),
		"data":     base64.StdEncoding.EncodeToString(data),
	}, nil
}
