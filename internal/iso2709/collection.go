package iso2709

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/marcq/internal/marc"
)

// CollectionReader streams records out of a concatenated ISO 2709 file.
//
// Records are delimited by the record terminator. Whitespace between records
// (line breaks added by some exporters) is skipped. A reader is not safe for
// concurrent use.
type CollectionReader struct {
	open   marc.Opener
	rc     io.ReadCloser
	br     *bufio.Reader
	closed bool
}

// NewCollectionReader opens the collection through open.
func NewCollectionReader(open marc.Opener) (*CollectionReader, error) {
	r := &CollectionReader{open: open}
	if err := r.reopen(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CollectionReader) reopen() error {
	rc, err := r.open()
	if err != nil {
		return fmt.Errorf("open iso2709 collection: %w", err)
	}
	r.rc = rc
	r.br = bufio.NewReaderSize(rc, 64*1024)
	r.closed = false
	return nil
}

// Next returns the next raw record including its terminator, or io.EOF.
func (r *CollectionReader) Next() ([]byte, error) {
	if r.closed {
		return nil, errors.New("iso2709: collection reader closed")
	}
	for {
		chunk, err := r.br.ReadBytes(RecordTerminator)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read iso2709 collection: %w", err)
		}
		record := bytes.TrimLeft(chunk, " \t\r\n")
		if !isBlank(record) {
			return record, nil
		}
		if err != nil {
			return nil, io.EOF
		}
	}
}

// Rewind reopens the collection from the start.
func (r *CollectionReader) Rewind() error {
	if err := r.Close(); err != nil {
		return err
	}
	return r.reopen()
}

// Close releases the underlying stream.
func (r *CollectionReader) Close() error {
	if r.closed || r.rc == nil {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}

// SplitCollection splits an in-memory collection into raw records.
func SplitCollection(data []byte) [][]byte {
	var records [][]byte
	for _, part := range bytes.SplitAfter(data, []byte{RecordTerminator}) {
		part = bytes.TrimLeft(part, " \t\r\n")
		if isBlank(part) {
			continue
		}
		records = append(records, part)
	}
	return records
}

// isBlank reports whether b holds nothing but whitespace and terminators.
func isBlank(b []byte) bool {
	return len(bytes.Trim(b, "\x1d \t\r\n")) == 0
}
