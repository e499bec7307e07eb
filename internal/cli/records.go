package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/marcq/internal/iso2709"
	"github.com/roach88/marcq/internal/marc"
	"github.com/roach88/marcq/internal/marcjson"
	"github.com/roach88/marcq/internal/marcxml"
	"github.com/roach88/marcq/internal/serialization"
)

// recordItem is one record read from a collection file.
type recordItem struct {
	Index  int // zero-based position in the collection
	Raw    []byte
	Record *marc.Record // nil when Err is set
	Diags  marc.Diagnostics
	Err    error
}

// errInvalidRecord marks a record whose decoding produced error diagnostics.
var errInvalidRecord = errors.New("invalid record")

// eachRecord streams the records of a possibly compressed collection file.
// Records that fail to decode, or decode with error diagnostics, are passed
// to fn with Err set; an error returned by fn stops the iteration.
func eachRecord(ctx context.Context, filename string, fn func(recordItem) error) (serialization.Format, error) {
	cur, f, err := serialization.OpenCollection(filename)
	if err != nil {
		return f, err
	}
	defer cur.Close()

	codec, err := serialization.CodecFor(f)
	if err != nil {
		return f, err
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return f, err
		}
		raw, err := cur.Next()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return f, fmt.Errorf("read %s: %w", filename, err)
		}

		item := recordItem{Index: i, Raw: raw}
		item.Record, item.Diags, item.Err = codec.Unmarshal(raw)
		if item.Err == nil && item.Diags.HasErrors() {
			item.Record = nil
			item.Err = fmt.Errorf("%w: %s", errInvalidRecord, strings.Join(item.Diags.Messages(), "; "))
		}
		if err := fn(item); err != nil {
			return f, err
		}
	}
}

// logDiagnostics reports record diagnostics at debug level.
func logDiagnostics(logger *slog.Logger, file string, item recordItem) {
	for _, d := range item.Diags {
		logger.Debug("record diagnostic",
			"file", file,
			"record", item.Index,
			"severity", d.Severity.String(),
			"message", d.Message,
		)
	}
}

// failFile maps a file or decoding error to an error code and exit code.
func failFile(formatter *OutputFormatter, file string, err error) error {
	details := map[string]string{"file": file}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err, details)
	case errors.Is(err, serialization.ErrUnrecognizedFormat):
		return formatter.Fail(ExitFailure, ErrCodeUnrecognizedInput, err, details)
	case errors.Is(err, errInvalidRecord), marcxml.IsSyntaxError(err), errors.Is(err, marcjson.ErrNotObject), iso2709.IsLimitError(err):
		return formatter.Fail(ExitFailure, ErrCodeInvalidRecord, err, details)
	default:
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, details)
	}
}

// extensions maps formats to the file extension written for them.
var extensions = map[serialization.Format]string{
	serialization.ISO2709:  ".mrc",
	serialization.MARCXML:  ".xml",
	serialization.MARCJSON: ".json",
}

// outputName derives the converted file name for input: compression and
// format extensions are dropped and the extension of f is appended.
func outputName(input string, f serialization.Format) string {
	base := filepath.Base(input)
	for _, ext := range []string{".gz", ".zst", ".zstd"} {
		base = strings.TrimSuffix(base, ext)
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".mrc", ".marc", ".iso", ".xml", ".json", ".jsonl":
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base + extensions[f]
}

// collectionWriter writes serialized records as one collection document.
// Nothing is written until the first record or Close.
type collectionWriter struct {
	w       io.Writer
	format  serialization.Format
	count   int
	started bool
}

var (
	xmlRecordStart = []byte("<record")
	xmlRecordEnd   = []byte("</record>")
)

const (
	xmlCollectionStart = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<collection xmlns="` + marcxml.Namespace + `">` + "\n"
	xmlCollectionEnd = "</collection>\n"
)

func newCollectionWriter(w io.Writer, f serialization.Format) *collectionWriter {
	return &collectionWriter{w: w, format: f}
}

func (cw *collectionWriter) begin() error {
	if cw.started {
		return nil
	}
	cw.started = true
	var err error
	switch cw.format {
	case serialization.MARCXML:
		_, err = io.WriteString(cw.w, xmlCollectionStart)
	case serialization.MARCJSON:
		_, err = io.WriteString(cw.w, "[")
	}
	return err
}

// Write serializes rec and appends it to the collection.
func (cw *collectionWriter) Write(rec *marc.Record) error {
	data, err := serialization.Marshal(rec, cw.format)
	if err != nil {
		return err
	}
	if err := cw.begin(); err != nil {
		return err
	}

	switch cw.format {
	case serialization.MARCXML:
		// Keep only the <record> element of the standalone document.
		start := bytes.Index(data, xmlRecordStart)
		end := bytes.LastIndex(data, xmlRecordEnd)
		if start < 0 || end < start {
			return fmt.Errorf("marcxml: no record element in output")
		}
		data = append(append([]byte("  "), data[start:end+len(xmlRecordEnd)]...), '\n')
	case serialization.MARCJSON:
		prefix := "\n"
		if cw.count > 0 {
			prefix = ",\n"
		}
		data = append([]byte(prefix), data...)
	}

	if _, err := cw.w.Write(data); err != nil {
		return err
	}
	cw.count++
	return nil
}

// Close terminates the collection document.
func (cw *collectionWriter) Close() error {
	if err := cw.begin(); err != nil {
		return err
	}
	var err error
	switch cw.format {
	case serialization.MARCXML:
		_, err = io.WriteString(cw.w, xmlCollectionEnd)
	case serialization.MARCJSON:
		if cw.count > 0 {
			_, err = io.WriteString(cw.w, "\n]\n")
		} else {
			_, err = io.WriteString(cw.w, "]\n")
		}
	}
	return err
}
