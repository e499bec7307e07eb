package serialization

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"

	"github.com/roach88/marcq/internal/iso2709"
	"github.com/roach88/marcq/internal/marc"
	"github.com/roach88/marcq/internal/marcjson"
	"github.com/roach88/marcq/internal/marcxml"
)

// sniffLength is how much of a collection is read to detect its format.
const sniffLength = 512

// Cursor iterates over the records of a collection.
type Cursor interface {
	// Next returns the next raw record, or io.EOF.
	Next() ([]byte, error)
	// Rewind restarts from the first record.
	Rewind() error
	Close() error
}

// multiCloser closes a decompressor and the file beneath it.
type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// OpenFile returns an Opener for filename that transparently decompresses
// .gz and .zst files.
func OpenFile(filename string) marc.Opener {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		switch {
		case strings.HasSuffix(filename, ".gz"):
			zr, err := gzip.NewReader(f)
			if err != nil {
				f.Close()
				return nil, err
			}
			return &multiCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
		case strings.HasSuffix(filename, ".zst"), strings.HasSuffix(filename, ".zstd"):
			zr, err := zstd.NewReader(f)
			if err != nil {
				f.Close()
				return nil, err
			}
			release := closerFunc(func() error { zr.Close(); return nil })
			return &multiCloser{Reader: zr, closers: []io.Closer{release, f}}, nil
		default:
			return f, nil
		}
	}
}

// Sniff reads the start of a stream and detects its collection format.
func Sniff(open marc.Opener) (Format, error) {
	rc, err := open()
	if err != nil {
		return Unknown, err
	}
	defer rc.Close()

	head, err := bufio.NewReaderSize(rc, sniffLength).Peek(sniffLength)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Unknown, err
	}
	return DetectCollection(head), nil
}

// OpenCollection opens a collection file of any supported format, possibly
// compressed.
func OpenCollection(filename string) (Cursor, Format, error) {
	open := OpenFile(filename)
	f, err := Sniff(open)
	if err != nil {
		return nil, Unknown, fmt.Errorf("open %s: %w", filename, err)
	}
	if f == Unknown {
		return nil, Unknown, fmt.Errorf("open %s: %w", filename, ErrUnrecognizedFormat)
	}
	cur, err := NewCursor(open, f)
	if err != nil {
		return nil, f, fmt.Errorf("open %s: %w", filename, err)
	}
	return cur, f, nil
}

// NewCursor opens a collection of a known format.
func NewCursor(open marc.Opener, f Format) (Cursor, error) {
	var (
		cur Cursor
		err error
	)
	switch f {
	case ISO2709:
		cur, err = iso2709.NewCollectionReader(open)
	case MARCXML:
		cur, err = marcxml.NewCollectionReader(open)
	case MARCJSON:
		cur, err = marcjson.NewCollectionReader(open)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, f)
	}
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// SplitCollection splits an in-memory collection into raw records.
func SplitCollection(data []byte) ([][]byte, Format, error) {
	f := DetectCollection(data)
	switch f {
	case ISO2709:
		return iso2709.SplitCollection(data), f, nil
	case MARCXML:
		records, err := marcxml.SplitCollection(data)
		return records, f, err
	case MARCJSON:
		records, err := marcjson.SplitCollection(data)
		return records, f, err
	default:
		return nil, Unknown, ErrUnrecognizedFormat
	}
}
