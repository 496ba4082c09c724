package sidecar

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/odal/internal/models"
	"github.com/starford/odal/internal/testutil"
)

func TestParseJSONTolerant(t *testing.T) {
	dir := testutil.TempTree(t, map[string]string{
		"photo_meta.json": `{
			// camera settings
			"iso": 200,
			"camera": "X100V",
		}`,
	})
	payload, err := parsePayload(filepath.Join(dir, "photo_meta.json"), FormatJSON)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	m, ok := payload.(map[string]interface{})
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if m["camera"] != "X100V" {
		t.Errorf("camera = %v", m["camera"])
	}
}

func TestParseHashListCoreutils(t *testing.T) {
	digest := strings.Repeat("ab", 32)
	dir := testutil.TempTree(t, map[string]string{
		"photo.jpg.sha256": "# comment\n" + digest + "  photo.jpg\n",
	})
	payload, err := parsePayload(filepath.Join(dir, "photo.jpg.sha256"), FormatHashList)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	set, ok := payload.(models.HashSet)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if set["sha256"] != digest {
		t.Errorf("sha256 = %s", set["sha256"])
	}
}

func TestParseHashListBSD(t *testing.T) {
	digest := strings.Repeat("cd", 20)
	dir := testutil.TempTree(t, map[string]string{
		"photo.sha1": "SHA1 (photo.jpg) = " + digest + "\n",
	})
	payload, err := parsePayload(filepath.Join(dir, "photo.sha1"), FormatHashList)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	set := payload.(models.HashSet)
	if set["sha1"] != digest {
		t.Errorf("sha1 = %s", set["sha1"])
	}
}

func TestParseHashListInferredFromLength(t *testing.T) {
	digest := strings.Repeat("12", 20) // 40 hex chars → sha1
	dir := testutil.TempTree(t, map[string]string{
		"photo.hash": digest + "\n",
	})
	payload, err := parsePayload(filepath.Join(dir, "photo.hash"), FormatHashList)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	set := payload.(models.HashSet)
	if set["sha1"] != digest {
		t.Errorf("set = %v", set)
	}
}

func TestParseHashListSFV(t *testing.T) {
	dir := testutil.TempTree(t, map[string]string{
		"movie.sfv": "; Generated by cksfv\nmovie.mp4 ABCD1234\n",
	})
	payload, err := parsePayload(filepath.Join(dir, "movie.sfv"), FormatHashList)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	set := payload.(models.HashSet)
	if set["crc32"] != "abcd1234" {
		t.Errorf("set = %v", set)
	}
	if _, wrong := set["sha1"]; wrong {
		t.Error("SFV digests must never be recorded as sha1")
	}
}

func TestParseHashListSFVRejectsNonCRCLines(t *testing.T) {
	dir := testutil.TempTree(t, map[string]string{
		"movie.sfv": "just a stray filename\n",
	})
	if _, err := parsePayload(filepath.Join(dir, "movie.sfv"), FormatHashList); err == nil {
		t.Error("expected error for an SFV manifest with no CRC entries")
	}
}

func TestParseHashListEmpty(t *testing.T) {
	dir := testutil.TempTree(t, map[string]string{
		"photo.sha256": "# only comments\n",
	})
	if _, err := parsePayload(filepath.Join(dir, "photo.sha256"), FormatHashList); err == nil {
		t.Error("expected error for a manifest with no digests")
	}
}

func TestParseTextUTF8(t *testing.T) {
	dir := testutil.TempTree(t, map[string]string{
		"photo.txt": "a plain description\n",
	})
	payload, err := parsePayload(filepath.Join(dir, "photo.txt"), FormatText)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if payload.(string) != "a plain description\n" {
		t.Errorf("text = %q", payload)
	}
}

func TestDecodeTextEncodings(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, "hi"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, "hi"},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}, "hi"},
		{"bomless utf16le", []byte{'h', 0, 'e', 0, 'l', 0, 'l', 0, 'o', 0, '!', 0}, "hello!"},
		{"latin1", []byte{'c', 'a', 'f', 0xE9}, "café"},
		{"plain", []byte("plain"), "plain"},
	}
	for _, tc := range cases {
		got, err := decodeText(tc.data)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestParseLinkSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "photo.lnk")
	if err := os.Symlink("/somewhere/else.jpg", link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	payload, err := parsePayload(link, FormatLink)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	m := payload.(map[string]interface{})
	if m["target"] != "/somewhere/else.jpg" {
		t.Errorf("target = %v", m["target"])
	}
}

func TestParseLinkURLFile(t *testing.T) {
	dir := testutil.TempTree(t, map[string]string{
		"photo.url": "[InternetShortcut]\nURL=https://example.com/photo\n",
	})
	payload, err := parsePayload(filepath.Join(dir, "photo.url"), FormatLink)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	m := payload.(map[string]interface{})
	if m["target"] != "https://example.com/photo" {
		t.Errorf("target = %v", m["target"])
	}
}

func TestParseLinkOpaque(t *testing.T) {
	raw := []byte{0x4C, 0x00, 0x00, 0x00, 0x01, 0x14, 0x02, 0x00}
	dir := t.TempDir()
	p := filepath.Join(dir, "photo.lnk")
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	payload, err := parsePayload(p, FormatLink)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	m := payload.(map[string]interface{})
	if m["encoding"] != "base64" {
		t.Fatalf("encoding = %v", m["encoding"])
	}
	decoded, err := base64.StdEncoding.DecodeString(m["data"].(string))
	if err != nil || string(decoded) != string(raw) {
		t.Error("opaque payload must round-trip through base64")
	}
}

func TestParseBinary(t *testing.T) {
	dir := testutil.TempTree(t, map[string]string{
		"photo_thumb.jpg": "\xff\xd8fakejpeg",
	})
	payload, err := parsePayload(filepath.Join(dir, "photo_thumb.jpg"), FormatBinary)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	m := payload.(map[string]interface{})
	if m["length"] != 10 {
		t.Errorf("length = %v", m["length"])
	}
}

func TestParseUnknownFormat(t *testing.T) {
	if _, err := parsePayload("/nonexistent", "parquet"); err == nil {
		t.Error("expected error for unknown format")
	}
}
