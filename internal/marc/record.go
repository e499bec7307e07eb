package marc

import (
	"io"
	"strings"
)

// LeaderLength is the fixed length of a MARC leader.
const LeaderLength = 24

// Subfield is a (code, value) pair within a data field.
type Subfield struct {
	Code  string
	Value string
}

// Field is a single field occurrence.
//
// Control fields (001-009) carry raw text in Value. Data fields carry two
// one-character indicators and an ordered subfield list.
type Field struct {
	Tag       string
	Control   bool
	Value     string
	Ind1      string
	Ind2      string
	Subfields []Subfield
}

// NewControlField creates a control field occurrence.
func NewControlField(tag, value string) Field {
	return Field{Tag: tag, Control: true, Value: value}
}

// NewDataField creates a data field occurrence.
// Indicators are left-padded to one character.
func NewDataField(tag, ind1, ind2 string, subfields ...Subfield) Field {
	return Field{
		Tag:       tag,
		Ind1:      PadIndicator(ind1),
		Ind2:      PadIndicator(ind2),
		Subfields: subfields,
	}
}

// PadIndicator left-pads an indicator to at least one character.
func PadIndicator(ind string) string {
	if ind == "" {
		return " "
	}
	return ind
}

// IsControlTag reports whether tag denotes a control field.
//
// Only three-digit numeric tags below 010 are control fields. Anything else,
// including non-numeric tags such as "LDR" or "FMT", is a data field.
func IsControlTag(tag string) bool {
	if len(tag) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if tag[i] < '0' || tag[i] > '9' {
			return false
		}
	}
	return tag < "010"
}

// Record is a bibliographic record: a leader plus an ordered field list.
type Record struct {
	leader string
	fields []Field
}

// NewRecord creates a record. The leader is normalized with NormalizeLeader.
func NewRecord(leader string, fields ...Field) *Record {
	return &Record{leader: NormalizeLeader(leader), fields: fields}
}

// NormalizeLeader truncates or right-pads a non-empty leader to 24 characters.
// An empty leader stays empty.
func NormalizeLeader(leader string) string {
	if leader == "" {
		return ""
	}
	if len(leader) >= LeaderLength {
		return leader[:LeaderLength]
	}
	return leader + strings.Repeat(" ", LeaderLength-len(leader))
}

// Leader returns the 24-character leader, or "" when the record has none.
func (r *Record) Leader() string {
	return r.leader
}

// Fields returns all field occurrences in record order.
// Callers must not modify the returned slice.
func (r *Record) Fields() []Field {
	return r.fields
}

// Len returns the number of field occurrences.
func (r *Record) Len() int {
	return len(r.fields)
}

// Append adds fields at the end of the record while it is being assembled.
func (r *Record) Append(fields ...Field) {
	r.fields = append(r.fields, fields...)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	fields := make([]Field, len(r.fields))
	for i, f := range r.fields {
		fields[i] = f
		if f.Subfields != nil {
			fields[i].Subfields = append([]Subfield(nil), f.Subfields...)
		}
	}
	return &Record{leader: r.leader, fields: fields}
}

// Equal reports whether two records have the same leader and fields.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.leader != other.leader || len(r.fields) != len(other.fields) {
		return false
	}
	for i := range r.fields {
		if !r.fields[i].Equal(other.fields[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two field occurrences are identical.
func (f Field) Equal(other Field) bool {
	if f.Tag != other.Tag || f.Control != other.Control {
		return false
	}
	if f.Control {
		return f.Value == other.Value
	}
	if f.Ind1 != other.Ind1 || f.Ind2 != other.Ind2 || len(f.Subfields) != len(other.Subfields) {
		return false
	}
	for i := range f.Subfields {
		if f.Subfields[i] != other.Subfields[i] {
			return false
		}
	}
	return true
}

// Opener opens (or reopens) the byte stream behind a collection.
// Collection readers call it again to rewind.
type Opener func() (io.ReadCloser, error)
