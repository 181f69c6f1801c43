// Package checksum verifies downloaded artifacts against declared digests.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Result classifies a verification attempt.
type Result int

const (
	Match Result = iota
	Mismatch
	AlgorithmUnavailable
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "algorithm-unavailable"
	}
}

// ErrMismatch marks a digest mismatch. A mismatching artifact is poisoned;
// retrying the same URL would fetch the same bytes, so callers must treat
// this as fatal and never feed it into a retry loop.
var ErrMismatch = errors.New("checksum mismatch")

// ErrUnavailable marks an algorithm this build cannot compute.
var ErrUnavailable = errors.New("checksum algorithm unavailable")

// Verify hashes the file at path with the named algorithm and compares
// against expectedHex (case-insensitive). The error return is for I/O
// problems only; semantic outcomes are the Result.
func Verify(path, algorithm, expectedHex string) (Result, error) {
	h, ok := newHash(algorithm)
	if !ok {
		return AlgorithmUnavailable, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Mismatch, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return Mismatch, fmt.Errorf("hash %s: %w", path, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if strings.EqualFold(actual, strings.TrimSpace(expectedHex)) {
		return Match, nil
	}
	return Mismatch, nil
}

// Expect parses a "algorithm:hex" spec (bare hex implies sha256) and
// verifies path against it. nil means the digest matched; otherwise the
// error wraps ErrMismatch or ErrUnavailable so callers can branch with
// errors.Is.
func Expect(path, spec string) error {
	algorithm, expected := Parse(spec)
	res, err := Verify(path, algorithm, expected)
	if err != nil {
		return err
	}
	switch res {
	case Match:
		return nil
	case AlgorithmUnavailable:
		return fmt.Errorf("%w: %q", ErrUnavailable, algorithm)
	default:
		return fmt.Errorf("%w: %s (%s)", ErrMismatch, path, algorithm)
	}
}

// Parse splits a digest spec into algorithm and hex parts. Specs look like
// "sha256:9f2d…"; a spec without a prefix is assumed to be sha256.
func Parse(spec string) (algorithm, expectedHex string) {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		return strings.ToLower(spec[:i]), spec[i+1:]
	}
	return "sha256", spec
}

func newHash(algorithm string) (hash.Hash, bool) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "sha256", "":
		return sha256.New(), true
	case "sha512":
		return sha512.New(), true
	case "sha1":
		return sha1.New(), true
	case "md5":
		return md5.New(), true
	default:
		return nil, false
	}
}

// File computes the sha256 of path as lowercase hex. Used for weak
// integrity logging when an upstream publishes no digest.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
