package marcjson

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/marcq/internal/marc"
)

const readBufferSize = 64 * 1024

// CollectionReader walks a JSON array of records one element at a time.
//
// Only the current element is held in memory. The underlying stream is read
// forward only, so Rewind reopens it. A reader is not safe for concurrent use.
type CollectionReader struct {
	open    marc.Opener
	rc      io.ReadCloser
	iter    *jsoniter.Iterator
	hasMore bool
	closed  bool
}

// NewCollectionReader opens the collection and positions the reader inside
// the outer array.
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
		return fmt.Errorf("open marcjson collection: %w", err)
	}
	r.rc = rc
	r.closed = false
	r.iter = jsoniter.Parse(api, rc, readBufferSize)
	if r.iter.WhatIsNext() != jsoniter.ArrayValue {
		_ = rc.Close()
		r.closed = true
		return errors.New("marcjson: collection is not a JSON array")
	}
	r.hasMore = r.iter.ReadArray()
	return r.iterError()
}

func (r *CollectionReader) iterError() error {
	if r.iter.Error != nil && !errors.Is(r.iter.Error, io.EOF) {
		return fmt.Errorf("read marcjson collection: %w", r.iter.Error)
	}
	return nil
}

// Next returns the next record re-serialized as a standalone document, or
// io.EOF after the last element.
func (r *CollectionReader) Next() ([]byte, error) {
	if r.closed {
		return nil, errors.New("marcjson: collection reader closed")
	}
	if !r.hasMore {
		return nil, io.EOF
	}

	raw := append([]byte(nil), r.iter.SkipAndReturnBytes()...)
	if err := r.iterError(); err != nil {
		return nil, err
	}
	r.hasMore = r.iter.ReadArray()
	if err := r.iterError(); err != nil {
		return nil, err
	}

	rec, _, err := Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	return Marshal(rec)
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

// SplitCollection returns every record of an in-memory collection,
// re-serialized as standalone documents.
func SplitCollection(data []byte) ([][]byte, error) {
	iter := jsoniter.ParseBytes(api, data)
	if iter.WhatIsNext() != jsoniter.ArrayValue {
		return nil, errors.New("marcjson: collection is not a JSON array")
	}
	var records [][]byte
	var failed error
	iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
		rec, _, err := decodeRecord(iter)
		if err != nil {
			failed = err
			return false
		}
		out, err := Marshal(rec)
		if err != nil {
			failed = err
			return false
		}
		records = append(records, out)
		return true
	})
	if failed != nil {
		return nil, failed
	}
	if iter.Error != nil {
		return nil, fmt.Errorf("marcjson: %w", iter.Error)
	}
	return records, nil
}
