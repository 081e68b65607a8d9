package acquire

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

var (
	// ErrSourceNotFound is returned when the compressed file does not exist.
	ErrSourceNotFound = errors.New("compressed source not found")

	// ErrInvalidArchive is returned when the file is not valid gzip, either at
	// open time or partway through the body.
	ErrInvalidArchive = errors.New("invalid gzip archive")
)

// GzipDecompressor opens gzip-compressed feed files.
type GzipDecompressor struct{}

// Open returns a stream of the decompressed contents of path. Corruption found
// while reading is reported as ErrInvalidArchive.
func (GzipDecompressor) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, path, err)
	}

	return &gzipStream{zr: zr, f: f}, nil
}

// ToFile decompresses src into dst and returns the decompressed size. dst is
// only created once decompression has succeeded.
func (d GzipDecompressor) ToFile(src, dst string) (int64, error) {
	in, err := d.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, err
	}
	return n, nil
}

type gzipStream struct {
	zr  *gzip.Reader
	f   *os.File
	err error
}

func (s *gzipStream) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.zr.Read(p)
	if err != nil && err != io.EOF {
		s.err = archiveErr(err)
		return n, s.err
	}
	return n, err
}

func (s *gzipStream) Close() error {
	zerr := s.zr.Close()
	ferr := s.f.Close()
	return errors.Join(zerr, ferr)
}

// archiveErr maps gzip/flate corruption to ErrInvalidArchive and leaves
// other I/O errors alone.
func archiveErr(err error) error {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, gzip.ErrHeader),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &corrupt):
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	default:
		return err
	}
}
