package pipes

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Digest hashes the bytes flowing through it with sha256.
type Digest struct {
	h hash.Hash
}

func NewDigest() *Digest { return &Digest{h: sha256.New()} }

func (d *Digest) Name() string { return "sha256-digest" }

func (d *Digest) Connect(r io.Reader) (io.Reader, error) {
	return io.TeeReader(r, d.h), nil
}

func (d *Digest) Sum() string { return hex.EncodeToString(d.h.Sum(nil)) }
