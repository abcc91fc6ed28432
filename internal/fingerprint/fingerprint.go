// Package fingerprint computes stable content addresses for structured data.
//
// Values are canonicalized to JSON with object keys sorted at every depth, so
// two values that differ only in key order share a digest.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Fingerprint pairs the hex SHA-256 digest with a CIDv1 of the same bytes.
type Fingerprint struct {
	Digest string `json:"digest"`
	CID    string `json:"cid"`
}

// Canonicalize renders v as canonical JSON. Numbers keep their literal form,
// arrays keep their order and HTML characters are not escaped.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: decode: %w", err)
	}

	// encoding/json writes map keys in sorted order, which gives the
	// recursive ordering once every object has been decoded into a map.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonicalize: encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Digest returns the hex SHA-256 of the canonical form of v.
func Digest(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return DigestBytes(canonical), nil
}

// DigestBytes returns the hex SHA-256 of data as-is.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CID returns a CIDv1 (raw codec, sha2-256) of the canonical form of v.
func CID(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return CIDBytes(canonical)
}

// CIDBytes returns a CIDv1 (raw codec, sha2-256) of data as-is.
func CIDBytes(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("cid: multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// Of canonicalizes v once and returns both digests.
func Of(v any) (Fingerprint, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return Fingerprint{}, err
	}
	c, err := CIDBytes(canonical)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Digest: DigestBytes(canonical), CID: c}, nil
}
