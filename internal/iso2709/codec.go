// Package iso2709 implements the MARC 21 binary exchange format.
//
// A record is a 24-byte leader, a directory of 12-byte entries
// (tag, length, offset) closed by a field terminator, the field data and a
// record terminator.
package iso2709

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/marcq/internal/marc"
)

const (
	// FieldTerminator ends every field and the directory.
	FieldTerminator = 0x1E
	// SubfieldIndicator precedes every subfield code.
	SubfieldIndicator = 0x1F
	// RecordTerminator ends a record.
	RecordTerminator = 0x1D

	directoryEntryLength = 12

	// MaxFieldLength is the largest field body a 4-digit length can express.
	MaxFieldLength = 9999
	// MaxOffset is the largest data offset a 5-digit offset can express.
	MaxOffset = 99999
	// MaxRecordLength is the largest record a 5-digit length can express.
	MaxRecordLength = 99999
)

// LimitError reports a record that cannot be expressed in ISO 2709.
type LimitError struct {
	Tag    string // offending field, empty for record-level limits
	Limit  string // "field length", "offset" or "record length"
	Actual int
	Max    int
}

func (e *LimitError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("iso2709: %s %d of field %s exceeds %d", e.Limit, e.Actual, e.Tag, e.Max)
	}
	return fmt.Sprintf("iso2709: %s %d exceeds %d", e.Limit, e.Actual, e.Max)
}

// IsLimitError reports whether err is a LimitError.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// Codec is the ISO 2709 serialization.
type Codec struct{}

// CanParse reports whether data starts with a numeric record length.
func (Codec) CanParse(data []byte) bool { return CanParse(data) }

// CanParseCollection reports whether data looks like a stream of records.
func (Codec) CanParseCollection(data []byte) bool { return CanParse(data) }

// Unmarshal parses a single record.
func (Codec) Unmarshal(data []byte) (*marc.Record, marc.Diagnostics, error) {
	rec, diags := Unmarshal(data)
	return rec, diags, nil
}

// Marshal serializes a record.
func (Codec) Marshal(rec *marc.Record) ([]byte, error) { return Marshal(rec) }

// CanParse reports whether the first four bytes are ASCII digits.
func CanParse(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	for _, b := range data[:4] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// Unmarshal parses one ISO 2709 record.
//
// Parsing never fails: structural problems are reported as diagnostics next
// to a best-effort record, and the caller decides whether to keep it.
func Unmarshal(data []byte) (*marc.Record, marc.Diagnostics) {
	var diags marc.Diagnostics

	if len(data) < marc.LeaderLength {
		diags.Add(marc.SeverityError, "record of %d bytes is shorter than the leader", len(data))
		return marc.NewRecord(string(data)), diags
	}
	rec := marc.NewRecord(string(data[:marc.LeaderLength]))

	dataStart, ok := parseDigits(data[12:17])
	if !ok {
		diags.Add(marc.SeverityError, "invalid base address of data %q", data[12:17])
		return rec, diags
	}
	dirLen := dataStart - marc.LeaderLength - 1
	if dirLen < 0 || dataStart > len(data) {
		diags.Add(marc.SeverityError, "base address of data %d out of range for %d-byte record", dataStart, len(data))
		return rec, diags
	}
	if dirLen%directoryEntryLength != 0 {
		diags.Add(marc.SeverityWarning, "directory length %d is not a multiple of %d", dirLen, directoryEntryLength)
	}

	directory := data[marc.LeaderLength : marc.LeaderLength+dirLen]
	body := data[dataStart:]
	for pos := 0; pos+directoryEntryLength <= len(directory); pos += directoryEntryLength {
		entry := directory[pos : pos+directoryEntryLength]
		tag := string(entry[:3])
		length, lok := parseDigits(entry[3:7])
		offset, ook := parseDigits(entry[7:12])
		if !lok || !ook {
			diags.Add(marc.SeverityError, "invalid directory entry %q", entry)
			continue
		}
		if offset+length > len(body) {
			diags.Add(marc.SeverityError, "field %s at offset %d length %d runs past the end of the record", tag, offset, length)
			continue
		}

		content := body[offset : offset+length]
		if len(content) == 0 || content[len(content)-1] != FieldTerminator {
			diags.Add(marc.SeverityWarning, "field %s at offset %d is missing its field terminator", tag, offset)
		} else {
			content = content[:len(content)-1]
		}

		if marc.IsControlTag(tag) {
			rec.Append(marc.NewControlField(tag, string(content)))
			continue
		}
		rec.Append(parseDataField(tag, content))
	}

	return rec, diags
}

// parseDigits reads an unsigned decimal number made of ASCII digits only.
func parseDigits(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func parseDataField(tag string, content []byte) marc.Field {
	ind1, ind2 := " ", " "
	rest := content
	if len(rest) > 0 && rest[0] != SubfieldIndicator {
		ind1 = string(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] != SubfieldIndicator {
		ind2 = string(rest[0])
		rest = rest[1:]
	}

	field := marc.NewDataField(tag, ind1, ind2)
	chunks := bytes.Split(rest, []byte{SubfieldIndicator})
	// The first chunk precedes the first indicator and carries no subfield.
	for _, chunk := range chunks[1:] {
		if len(chunk) == 0 {
			continue
		}
		_, size := utf8.DecodeRune(chunk)
		field.Subfields = append(field.Subfields, marc.Subfield{
			Code:  string(chunk[:size]),
			Value: string(chunk[size:]),
		})
	}
	return field
}

// dirEntry locates one field in the data block.
type dirEntry struct {
	tag    string
	length int
	offset int
}

// layout accumulates the directory and data block before any output is
// written.
type layout struct {
	entries []dirEntry
	data    bytes.Buffer
}

func (l *layout) add(tag string, body []byte) error {
	offset := l.data.Len()
	if len(body) > MaxFieldLength {
		return &LimitError{Tag: tag, Limit: "field length", Actual: len(body), Max: MaxFieldLength}
	}
	if offset > MaxOffset {
		return &LimitError{Tag: tag, Limit: "offset", Actual: offset, Max: MaxOffset}
	}
	l.entries = append(l.entries, dirEntry{tag: tag, length: len(body), offset: offset})
	l.data.Write(body)
	return nil
}

func (l *layout) directoryLength() int {
	return len(l.entries)*directoryEntryLength + 1
}

// Marshal serializes a record.
//
// A record that exceeds a format limit yields nil output and a LimitError.
func Marshal(rec *marc.Record) ([]byte, error) {
	var l layout
	for _, f := range rec.Fields() {
		if err := l.add(f.Tag, fieldBody(f)); err != nil {
			return nil, err
		}
	}

	baseAddress := marc.LeaderLength + l.directoryLength()
	total := baseAddress + l.data.Len() + 1
	if total > MaxRecordLength {
		return nil, &LimitError{Limit: "record length", Actual: total, Max: MaxRecordLength}
	}

	leader := []byte(marc.NormalizeLeader(rec.Leader()))
	if len(leader) == 0 {
		leader = bytes.Repeat([]byte{' '}, marc.LeaderLength)
	}
	copy(leader[0:5], fmt.Sprintf("%05d", total))
	copy(leader[12:17], fmt.Sprintf("%05d", baseAddress))

	out := bytes.NewBuffer(make([]byte, 0, total))
	out.Write(leader)
	for _, e := range l.entries {
		fmt.Fprintf(out, "%s%04d%05d", formatTag(e.tag), e.length, e.offset)
	}
	out.WriteByte(FieldTerminator)
	out.Write(l.data.Bytes())
	out.WriteByte(RecordTerminator)
	return out.Bytes(), nil
}

func fieldBody(f marc.Field) []byte {
	var b bytes.Buffer
	if f.Control {
		b.WriteString(f.Value)
	} else {
		b.WriteString(firstChar(f.Ind1))
		b.WriteString(firstChar(f.Ind2))
		for _, sf := range f.Subfields {
			b.WriteByte(SubfieldIndicator)
			b.WriteString(sf.Code)
			b.WriteString(sf.Value)
		}
	}
	b.WriteByte(FieldTerminator)
	return b.Bytes()
}

// firstChar keeps indicators at exactly one ASCII byte so the layout stays
// valid. Empty and non-ASCII indicators become blanks.
func firstChar(ind string) string {
	if ind == "" || ind[0] >= utf8.RuneSelf {
		return " "
	}
	return ind[:1]
}

// formatTag forces tags to three bytes.
func formatTag(tag string) string {
	switch {
	case len(tag) == 3:
		return tag
	case len(tag) > 3:
		return tag[:3]
	default:
		return strings.Repeat("0", 3-len(tag)) + tag
	}
}
