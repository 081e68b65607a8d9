package feed

// streaming.go holds the io.Reader adapters that sit between the
// decompressor and the CSV parser. Both keep memory constant: nothing here
// buffers more than one bufio window of the feed.

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readBufferSize is the bufio window used in front of the CSV parser.
const readBufferSize = 64 * 1024

// SkipBOM returns a reader that drops a leading UTF-8 byte order mark.
// Feeds exported from spreadsheet tools often carry one, and it would
// otherwise end up glued to the first header name.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReaderSize(r, readBufferSize)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// CountingReader tracks bytes read. The counter is safe to read from another
// goroutine while the feed is being consumed, which is how run progress is
// reported.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	total int64
}

// NewCountingReader wraps r. total is the expected size, or 0 if unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (c *CountingReader) BytesRead() int64 { return c.n.Load() }

// Progress returns read progress as a percentage (0-100), or 0 when the total
// is unknown.
func (c *CountingReader) Progress() int {
	if c.total <= 0 {
		return 0
	}
	p := int(c.n.Load() * 100 / c.total)
	if p > 100 {
		p = 100
	}
	return p
}
