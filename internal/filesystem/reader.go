package filesystem

import (
	"bytes"
	"io"
)

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
