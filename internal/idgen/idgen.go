// Package idgen generates short collision-checked issue ids.
//
// An id is "<prefix>-<suffix>" where the suffix encodes 40 random bits as
// 8 lowercase base32 characters. The generator depends only on a random
// source and an existence probe, so tests can drive both.
package idgen

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
)

// suffixBytes is the random payload size: 40 bits encodes to exactly
// 8 base32 characters with no padding.
const suffixBytes = 5

// maxAttempts bounds collision retries. 40 bits of randomness makes even a
// second attempt rare below ~1M issues.
const maxAttempts = 16

var encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// ExistsFunc reports whether an id is already taken.
type ExistsFunc func(id string) (bool, error)

// Generator produces ids for one project prefix.
type Generator struct {
	prefix string
	src    io.Reader
}

// New returns a Generator using crypto/rand.
func New(prefix string) *Generator {
	return &Generator{prefix: prefix, src: rand.Reader}
}

// NewWithSource returns a Generator reading randomness from src.
func NewWithSource(prefix string, src io.Reader) *Generator {
	return &Generator{prefix: prefix, src: src}
}

// Prefix returns the configured project prefix.
func (g *Generator) Prefix() string { return g.prefix }

// Next returns a fresh id not present according to exists.
func (g *Generator) Next(exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var buf [suffixBytes]byte
		if _, err := io.ReadFull(g.src, buf[:]); err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		id := fmt.Sprintf("%s-%s", g.prefix, encoding.EncodeToString(buf[:]))
		taken, err := exists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique id after %d attempts", maxAttempts)
}
