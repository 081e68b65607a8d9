package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/catalog-etl/internal/core"
)

// DefaultChunkSize is the number of rows per chunk when none is configured.
const DefaultChunkSize = 50000

var (
	// ErrEmptyFeed is returned when the stream has no header row.
	ErrEmptyFeed = errors.New("feed has no header row")

	// ErrTooManyFields is returned for a row wider than the header.
	ErrTooManyFields = errors.New("row has more fields than the header")
)

// ParseError reports a malformed feed row. The chunk it belongs to is
// discarded in full.
type ParseError struct {
	Chunk int // chunk index, -1 for the header
	Line  int // 1-based source line
	Err   error
}

func (e *ParseError) Error() string {
	if e.Chunk < 0 {
		return fmt.Sprintf("feed header (line %d): %v", e.Line, e.Err)
	}
	return fmt.Sprintf("feed chunk %d (line %d): %v", e.Chunk, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Source splits a CSV stream into chunks of at most chunkSize rows.
//
// A Source is single use: once Next returns io.EOF or an error it keeps
// returning that same result. Only the rows of the current chunk are held in
// memory.
type Source struct {
	csv       *csv.Reader
	counter   *CountingReader
	chunkSize int

	header  core.HeaderIndex
	columns []string
	next    int
	err     error
}

// NewSource creates a chunked reader over r. The header is read on the first
// call to Next. chunkSize <= 0 selects DefaultChunkSize.
func NewSource(r io.Reader, chunkSize int) *Source {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	counter := NewCountingReader(r, 0)
	cr := csv.NewReader(SkipBOM(counter))
	cr.FieldsPerRecord = -1 // widths are checked against the header below
	cr.ReuseRecord = false

	return &Source{
		csv:       cr,
		counter:   counter,
		chunkSize: chunkSize,
	}
}

// Header returns the feed's column names in source order, lowercased. It is
// nil until the first call to Next.
func (s *Source) Header() []string { return s.columns }

// BytesRead returns the number of (decompressed) bytes consumed so far.
func (s *Source) BytesRead() int64 { return s.counter.BytesRead() }

// Next returns the next chunk, or io.EOF after the last one.
func (s *Source) Next() (core.Chunk, error) {
	if s.err != nil {
		return core.Chunk{}, s.err
	}
	if s.header == nil {
		if err := s.readHeader(); err != nil {
			s.err = err
			return core.Chunk{}, err
		}
	}

	idx := s.next
	rows := make([][]string, 0, min(s.chunkSize, 4096))
	firstLine := 0

	for len(rows) < s.chunkSize {
		rec, err := s.csv.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.err = s.wrapErr(idx, err)
			return core.Chunk{}, s.err
		}
		line, _ := s.csv.FieldPos(0)
		if len(rec) > len(s.columns) {
			s.err = &ParseError{
				Chunk: idx,
				Line:  line,
				Err:   fmt.Errorf("%w: got %d, want %d", ErrTooManyFields, len(rec), len(s.columns)),
			}
			return core.Chunk{}, s.err
		}

		sanitize(rec)
		if firstLine == 0 {
			firstLine = line
		}
		rows = append(rows, rec)
	}

	if len(rows) == 0 {
		s.err = io.EOF
		return core.Chunk{}, io.EOF
	}

	s.next++
	return core.Chunk{
		Index:     idx,
		FirstLine: firstLine,
		Header:    s.header,
		Rows:      rows,
	}, nil
}

func (s *Source) readHeader() error {
	rec, err := s.csv.Read()
	if err == io.EOF {
		return &ParseError{Chunk: -1, Line: 1, Err: ErrEmptyFeed}
	}
	if err != nil {
		return s.wrapErr(-1, err)
	}

	sanitize(rec)
	s.header = core.MakeHeaderIndex(rec)
	s.columns = make([]string, len(rec))
	for i, name := range rec {
		s.columns[i] = strings.ToLower(strings.TrimSpace(name))
	}
	return nil
}

// wrapErr turns CSV syntax errors into a ParseError. Anything else came from
// the underlying stream (network, gzip) and is passed through wrapped so the
// caller can classify it.
func (s *Source) wrapErr(chunk int, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Chunk: chunk, Line: pe.StartLine, Err: pe.Err}
	}
	if chunk < 0 {
		return fmt.Errorf("read feed header: %w", err)
	}
	return fmt.Errorf("read feed chunk %d: %w", chunk, err)
}

// sanitize replaces invalid UTF-8 in place so every cell is safe to hand to a
// database driver.
func sanitize(rec []string) {
	for i, v := range rec {
		if !utf8.ValidString(v) {
			rec[i] = strings.ToValidUTF8(v, "\uFFFD")
		}
	}
}
