package marc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcq/internal/marc"
	"github.com/roach88/marcq/internal/testutil"
)

func TestParseLinkage(t *testing.T) {
	tests := []struct {
		input  string
		expect marc.Linkage
	}{
		{"880-01", marc.Linkage{Field: "880", Occurrence: "01"}},
		{"245-01/(N", marc.Linkage{Field: "245", Occurrence: "01", Script: "(N"}},
		{"245-02/(3/r", marc.Linkage{Field: "245", Occurrence: "02", Script: "(3", Orientation: "r"}},
		{"100", marc.Linkage{Field: "100"}},
		{"", marc.Linkage{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expect, marc.ParseLinkage(tt.input))
		})
	}
}

func TestFieldsByTag(t *testing.T) {
	rec := testutil.SampleRecord()

	t.Run("control field", func(t *testing.T) {
		fields := rec.FieldsByTag("001", "a")
		require.Len(t, fields, 1)
		assert.True(t, fields[0].Control)
		assert.Equal(t, "123456", fields[0].Value)
	})

	t.Run("repeated tag", func(t *testing.T) {
		assert.Len(t, rec.FieldsByTag("650"), 2)
	})

	t.Run("subfield filter drops empty fields", func(t *testing.T) {
		fields := rec.FieldsByTag("650", "0")
		require.Len(t, fields, 1)
		assert.Equal(t, []marc.Subfield{{Code: "0", Value: "http://www.yso.fi/onto/yso/p1234"}}, fields[0].Subfields)
	})

	t.Run("missing tag", func(t *testing.T) {
		assert.Empty(t, rec.FieldsByTag("999"))
		_, ok := rec.Field("999")
		assert.False(t, ok)
	})

	t.Run("first field", func(t *testing.T) {
		f, ok := rec.Field("245", "a", "c")
		require.True(t, ok)
		assert.Len(t, f.Subfields, 2)
		assert.Equal(t, "1", f.Ind1)
	})
}

func TestFieldSubfields(t *testing.T) {
	f := marc.NewDataField("500", " ", " ",
		marc.Subfield{Code: "a", Value: "  first "},
		marc.Subfield{Code: "b", Value: "other"},
		marc.Subfield{Code: "a", Value: "second"},
	)

	assert.Equal(t, "first", f.Subfield("a"))
	assert.Equal(t, "", f.Subfield("z"))
	assert.Equal(t, []string{"first", "second"}, f.SubfieldValues("a"))
	assert.Equal(t, []string{"first", "other", "second"}, f.SubfieldValues(""))
}

func TestFieldsSubfields(t *testing.T) {
	rec := testutil.SampleRecord()

	assert.Equal(t,
		[]string{"romaanit yso/fin", "kirjallisuus yso/fin"},
		rec.FieldsSubfields("650", []string{"a", "2"}, " "))
	assert.Equal(t,
		[]string{"Kivi, Aleksis,|1834-1872."},
		rec.FieldsSubfields("100", nil, "|"))
	assert.Equal(t,
		[]string{"romaanit", "kirjallisuus"},
		rec.FieldsSubfieldValues("650", []string{"a"}))
	assert.Empty(t, rec.FieldsSubfields("001", nil, " "))
}

func TestLinkedFields(t *testing.T) {
	rec := testutil.SampleRecord()

	linked := rec.LinkedFields("880", "245")
	require.Len(t, linked, 1)
	assert.Equal(t, "01", linked[0].Link.Occurrence)
	assert.Equal(t, "(N", linked[0].Link.Script)
	assert.Equal(t, "Семеро братьев", linked[0].Subfield("a"))

	_, ok := rec.LinkedField("880", "245", "02")
	assert.False(t, ok)

	lf, ok := rec.LinkedField("880", "245", "01", "a")
	require.True(t, ok)
	assert.Len(t, lf.Subfields, 1)

	assert.Empty(t, rec.LinkedFields("880", "100"))
	assert.Equal(t,
		[]string{"245-01/(N Семеро братьев"},
		rec.LinkedFieldsSubfields("880", "245", nil, " "))

	f, _ := rec.Field("245")
	assert.Equal(t, marc.Linkage{Field: "880", Occurrence: "01"}, f.Link())
}
