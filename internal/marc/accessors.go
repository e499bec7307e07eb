package marc

import (
	"slices"
	"strings"
)

// Linkage is a parsed $6 linkage subfield: "tag-occurrence/script/orientation".
type Linkage struct {
	Field       string
	Occurrence  string
	Script      string
	Orientation string
}

// ParseLinkage parses the content of a $6 subfield.
func ParseLinkage(link string) Linkage {
	parts := strings.SplitN(link, "/", 3)
	target := strings.Split(parts[0], "-")
	l := Linkage{Field: target[0]}
	if len(target) > 1 {
		l.Occurrence = target[1]
	}
	if len(parts) > 1 {
		l.Script = parts[1]
	}
	if len(parts) > 2 {
		l.Orientation = parts[2]
	}
	return l
}

// LinkedField is a field selected through its $6 linkage.
type LinkedField struct {
	Field
	Link Linkage
}

// FieldsByTag returns the occurrences of tag.
//
// When codes are given, data field subfields are filtered to those codes and
// data fields left without subfields are dropped. Control fields are always
// returned.
func (r *Record) FieldsByTag(tag string, codes ...string) []Field {
	var result []Field
	for _, f := range r.fields {
		if f.Tag != tag {
			continue
		}
		if f.Control {
			result = append(result, f)
			continue
		}
		if filtered, ok := filterSubfields(f, codes); ok {
			result = append(result, filtered)
		}
	}
	return result
}

// Field returns the first occurrence of tag, filtered like FieldsByTag.
func (r *Record) Field(tag string, codes ...string) (Field, bool) {
	fields := r.FieldsByTag(tag, codes...)
	if len(fields) == 0 {
		return Field{}, false
	}
	return fields[0], true
}

// FieldsSubfields returns, for every data field with the given tag, its
// matching subfield values joined with sep.
func (r *Record) FieldsSubfields(tag string, codes []string, sep string) []string {
	var result []string
	for _, f := range r.fields {
		if f.Tag != tag || f.Control {
			continue
		}
		var values []string
		for _, sf := range f.Subfields {
			if len(codes) > 0 && !slices.Contains(codes, sf.Code) {
				continue
			}
			values = append(values, sf.Value)
		}
		if len(values) > 0 {
			result = append(result, strings.Join(values, sep))
		}
	}
	return result
}

// FieldsSubfieldValues is FieldsSubfields without joining: every matching
// subfield value becomes a separate entry.
func (r *Record) FieldsSubfieldValues(tag string, codes []string) []string {
	var result []string
	for _, f := range r.fields {
		if f.Tag != tag || f.Control {
			continue
		}
		for _, sf := range f.Subfields {
			if len(codes) > 0 && !slices.Contains(codes, sf.Code) {
				continue
			}
			result = append(result, sf.Value)
		}
	}
	return result
}

// LinkedFields returns the occurrences of tag whose $6 links to linkedTag,
// typically 880 fields pointing back at their romanized counterparts.
func (r *Record) LinkedFields(tag, linkedTag string, codes ...string) []LinkedField {
	var result []LinkedField
	for _, f := range r.fields {
		if f.Tag != tag || f.Control {
			continue
		}
		link := ParseLinkage(f.Subfield("6"))
		if link.Field != linkedTag {
			continue
		}
		if filtered, ok := filterSubfields(f, codes); ok {
			result = append(result, LinkedField{Field: filtered, Link: link})
		}
	}
	return result
}

// LinkedField returns the first linked field, or the one with the given
// occurrence number when occurrence is non-empty.
func (r *Record) LinkedField(tag, linkedTag, occurrence string, codes ...string) (LinkedField, bool) {
	for _, lf := range r.LinkedFields(tag, linkedTag, codes...) {
		if occurrence == "" || occurrence == lf.Link.Occurrence {
			return lf, true
		}
	}
	return LinkedField{}, false
}

// LinkedFieldsSubfields joins the trimmed subfield values of every linked
// field with sep.
func (r *Record) LinkedFieldsSubfields(tag, linkedTag string, codes []string, sep string) []string {
	var result []string
	for _, lf := range r.LinkedFields(tag, linkedTag, codes...) {
		result = append(result, strings.Join(lf.SubfieldValues(""), sep))
	}
	return result
}

// Subfield returns the trimmed value of the first subfield with code, or "".
func (f Field) Subfield(code string) string {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return strings.TrimSpace(sf.Value)
		}
	}
	return ""
}

// SubfieldValues returns the trimmed values of all subfields with code.
// An empty code selects every subfield.
func (f Field) SubfieldValues(code string) []string {
	var result []string
	for _, sf := range f.Subfields {
		if code == "" || sf.Code == code {
			result = append(result, strings.TrimSpace(sf.Value))
		}
	}
	return result
}

// Link parses the field's $6 linkage subfield.
func (f Field) Link() Linkage {
	return ParseLinkage(f.Subfield("6"))
}

func filterSubfields(f Field, codes []string) (Field, bool) {
	var subfields []Subfield
	for _, sf := range f.Subfields {
		if len(codes) > 0 && !slices.Contains(codes, sf.Code) {
			continue
		}
		subfields = append(subfields, sf)
	}
	if len(subfields) == 0 {
		return Field{}, false
	}
	f.Subfields = subfields
	return f, true
}
