package pipes

import (
	"io"
	"sync/atomic"
)

// Meter counts the bytes flowing through it.
type Meter struct {
	n atomic.Int64
}

func (m *Meter) Name() string { return "meter" }

func (m *Meter) Connect(r io.Reader) (io.Reader, error) {
	return &meteredReader{r: r, m: m}, nil
}

func (m *Meter) Count() int64 { return m.n.Load() }

type meteredReader struct {
	r io.Reader
	m *Meter
}

func (mr *meteredReader) Read(p []byte) (int, error) {
	n, err := mr.r.Read(p)
	mr.m.n.Add(int64(n))
	return n, err
}
