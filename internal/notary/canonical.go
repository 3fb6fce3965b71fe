package notary

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Digest selects the hash function applied to canonical documents.
type Digest string

const (
	DigestSHA256  Digest = "sha256"
	DigestBLAKE2b Digest = "blake2b"
)

// ParseDigest accepts "sha256" or "blake2b"; empty selects SHA-256.
func ParseDigest(s string) (Digest, error) {
	switch Digest(strings.ToLower(strings.TrimSpace(s))) {
	case "", DigestSHA256:
		return DigestSHA256, nil
	case DigestBLAKE2b:
		return DigestBLAKE2b, nil
	default:
		return "", fmt.Errorf("unsupported digest %q", s)
	}
}

func (d Digest) new() hash.Hash {
	if d == DigestBLAKE2b {
		h, _ := blake2b.New256(nil)
		return h
	}
	return sha256.New()
}

// Canonicalize renders doc as JSON with object keys sorted at every level,
// no insignificant whitespace, and array order preserved. Numbers keep their
// original textual form.
func Canonicalize(doc any) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return writeScalar(buf, t)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	// Encoder terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Hash returns the SHA-256 digest of the canonical form of doc as 0x-prefixed
// lowercase hex.
func Hash(doc any) (string, error) {
	return HashWith(DigestSHA256, doc)
}

// HashWith is Hash with a selectable digest.
func HashWith(d Digest, doc any) (string, error) {
	canonical, err := Canonicalize(doc)
	if err != nil {
		return "", err
	}
	h := d.new()
	h.Write(canonical)
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyWith reports whether doc hashes to expected under d.
func VerifyWith(d Digest, doc any, expected string) bool {
	got, err := HashWith(d, doc)
	if err != nil {
		return false
	}
	want := normalizeHash(expected)
	return want != "" && normalizeHash(got) == want
}

// normalizeHash lowercases and strips an optional 0x prefix.
func normalizeHash(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "0x")
}
