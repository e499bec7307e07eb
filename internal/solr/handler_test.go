package solr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, spec HandlerSpec) *SearchHandler {
	t.Helper()
	h, err := NewSearchHandler(spec, "")
	require.NoError(t, err)
	return h
}

func TestNewSearchHandler_DefaultMinimumMatch(t *testing.T) {
	tests := []struct {
		name string
		spec HandlerSpec
		want []Param
	}{
		{
			name: "dismax",
			spec: HandlerSpec{DismaxFields: []string{"a"}},
			want: []Param{{Name: "mm", Value: "100%"}},
		},
		{
			name: "edismax",
			spec: HandlerSpec{DismaxFields: []string{"a"}, DismaxHandler: "edismax"},
			want: []Param{{Name: "mm", Value: "0%"}},
		},
		{
			name: "explicit mm",
			spec: HandlerSpec{DismaxFields: []string{"a"}, DismaxParams: []Param{{Name: "mm", Value: "2"}}},
			want: []Param{{Name: "mm", Value: "2"}},
		},
		{
			name: "other params kept",
			spec: HandlerSpec{DismaxFields: []string{"a"}, DismaxParams: []Param{{Name: "bq", Value: "x:1"}}},
			want: []Param{{Name: "bq", Value: "x:1"}, {Name: "mm", Value: "100%"}},
		},
		{
			name: "no dismax fields",
			spec: HandlerSpec{QueryFields: []QueryField{{Field: "a", Munges: []Munge{{Name: "and"}}}}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.spec)
			assert.Equal(t, tt.want, h.DismaxParams())
		})
	}
}

func TestNewSearchHandler_DoesNotShareParams(t *testing.T) {
	params := []Param{{Name: "bq", Value: "x:1"}}
	spec := HandlerSpec{DismaxFields: []string{"a"}, DismaxParams: params[:1:1]}
	h := newTestHandler(t, spec)
	h.DismaxParams()[0].Value = "changed"
	assert.Equal(t, "x:1", params[0].Value)
}

func TestNewSearchHandler_DismaxHandlerDefault(t *testing.T) {
	h, err := NewSearchHandler(HandlerSpec{DismaxFields: []string{"a"}}, "edismax")
	require.NoError(t, err)
	assert.Equal(t, "edismax", h.DismaxHandler())
	assert.True(t, h.HasExtendedDismax())

	h = newTestHandler(t, HandlerSpec{DismaxFields: []string{"a"}})
	assert.Equal(t, DefaultDismaxHandler, h.DismaxHandler())
	assert.False(t, h.HasExtendedDismax())
}

func TestNewSearchHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec HandlerSpec
		want string
	}{
		{
			name: "unknown op",
			spec: HandlerSpec{CustomMunge: map[string][]MungeOp{"m": {{Op: "reverse"}}}},
			want: `unknown munge operation "reverse"`,
		},
		{
			name: "append arity",
			spec: HandlerSpec{CustomMunge: map[string][]MungeOp{"m": {{Op: "append"}}}},
			want: "append takes 1 argument",
		},
		{
			name: "preg_replace arity",
			spec: HandlerSpec{CustomMunge: map[string][]MungeOp{"m": {{Op: "preg_replace", Args: []string{"/a/"}}}}},
			want: "preg_replace takes 2 arguments",
		},
		{
			name: "bad pattern",
			spec: HandlerSpec{CustomMunge: map[string][]MungeOp{"m": {{Op: "preg_replace", Args: []string{"/(/", ""}}}}},
			want: "custom munge m",
		},
		{
			name: "unknown munge name",
			spec: HandlerSpec{QueryFields: []QueryField{{Field: "title", Munges: []Munge{{Name: "missing"}}}}},
			want: `query field title: unknown munge "missing"`,
		},
		{
			name: "unknown munge in group",
			spec: HandlerSpec{QueryFields: []QueryField{{Group: []QueryField{{Field: "title", Munges: []Munge{{Name: "missing"}}}}}}},
			want: `unknown munge "missing"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSearchHandler(tt.spec, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSearchHandler_QueryFields(t *testing.T) {
	h := newTestHandler(t, HandlerSpec{
		QueryFields: []QueryField{
			{Field: "title", Munges: []Munge{{Name: "onephrase", Weight: 500}, {Name: "and", Weight: 200}}},
			{Field: "subject", Munges: []Munge{{Name: "or"}}},
			{Field: "id", Munges: []Munge{{Name: "identity", Weight: 1.5}}},
		},
	})

	tests := []struct {
		name     string
		advanced bool
		input    string
		want     string
	}{
		{
			name:  "simple",
			input: "a b",
			want:  `(title:("a b")^500 OR title:(a AND b)^200 OR subject:(a OR b) OR id:(a b)^1.5)`,
		},
		{
			name:  "simple with phrase",
			input: `a "b c"`,
			want:  `(title:("a b c")^500 OR title:(a AND "b c")^200 OR subject:(a OR "b c") OR id:(a "b c")^1.5)`,
		},
		{
			name:  "simple with boolean",
			input: "a AND b c",
			want:  `(title:("a AND b c")^500 OR title:(a AND b AND c)^200 OR subject:(a AND b OR c) OR id:(a AND b c)^1.5)`,
		},
		{
			name:     "advanced",
			advanced: true,
			input:    "a* b",
			want:     `(title:("a* b")^500 OR title:(a* b)^200 OR subject:(a* b) OR id:(a* b)^1.5)`,
		},
		{
			name:     "advanced with NOT",
			advanced: true,
			input:    "a NOT b",
			want:     `(title:(a NOT b)^500 OR title:(a NOT b)^200 OR subject:(a NOT b) OR id:(a NOT b)^1.5)`,
		},
		{
			name:     "advanced single word",
			advanced: true,
			input:    "a*",
			want:     `(title:(a*)^500 OR title:(a*)^200 OR subject:(a*) OR id:(a*)^1.5)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.advanced {
				got = h.CreateAdvancedQueryString(tt.input)
			} else {
				got = h.CreateSimpleQueryString(tt.input)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchHandler_NestedQueryFields(t *testing.T) {
	h := newTestHandler(t, HandlerSpec{
		QueryFields: []QueryField{
			{
				Join:   "AND",
				Weight: 5,
				Group: []QueryField{
					{Field: "a", Munges: []Munge{{Name: "and"}}},
					{Field: "b", Munges: []Munge{{Name: "or"}}},
				},
			},
			{Field: "c", Munges: []Munge{{Name: "onephrase"}}},
			{Group: []QueryField{{Field: "d", Munges: []Munge{{Name: "and"}}}}},
		},
	})
	assert.Equal(t,
		`((a:(x AND y) AND b:(x OR y))^5 OR c:("x y") OR (d:(x AND y)))`,
		h.CreateSimpleQueryString("x y"))
}

func TestSearchHandler_CustomMunge(t *testing.T) {
	h := newTestHandler(t, HandlerSpec{
		CustomMunge: map[string][]MungeOp{
			"callnumber": {
				{Op: "uppercase"},
				{Op: "preg_replace", Args: []string{`/\s+/`, ""}},
				{Op: "append", Args: []string{"*"}},
			},
			"lower": {
				{Op: "lowercase"},
				{Op: "preg_replace", Args: []string{`/(\w+)-(\w+)/`, "$2 $1"}},
			},
		},
		QueryFields: []QueryField{
			{Field: "callnumber", Munges: []Munge{{Name: "callnumber", Weight: 10}}},
			{Field: "topic", Munges: []Munge{{Name: "lower"}}},
		},
	})
	assert.Equal(t,
		`(callnumber:(QA76-73G6*)^10 OR topic:(73 qa76 g6))`,
		h.CreateSimpleQueryString("qa76-73 G6"))
}

func TestSearchHandler_DismaxSubquery(t *testing.T) {
	h := newTestHandler(t, HandlerSpec{
		DismaxFields:  []string{"f1", "f2"},
		DismaxHandler: "edismax",
		DismaxParams:  []Param{{Name: "mm", Value: "50%"}},
	})
	assert.Equal(t,
		`(_query_:"{!edismax qf=\"f1 f2\" mm=\'50%\'}title:\"x\"")`,
		h.CreateAdvancedQueryString(`title:"x"`))
	assert.Equal(t,
		`(_query_:"{!edismax qf=\"f1 f2\" mm=\'50%\'}x y")`,
		h.CreateSimpleQueryString("x y"))

	// plain dismax cannot parse Lucene syntax
	d := newTestHandler(t, HandlerSpec{DismaxFields: []string{"f1"}})
	assert.Equal(t, "(a* b)", d.CreateAdvancedQueryString("a* b"))
	assert.Equal(t, `(_query_:"{!dismax qf=\"f1\" mm=\'100%\'}a b")`, d.CreateSimpleQueryString("a b"))
}

func TestSearchHandler_FilterQuery(t *testing.T) {
	h := newTestHandler(t, HandlerSpec{FilterQuery: "a:filter"})
	assert.True(t, h.HasFilterQuery())
	assert.Equal(t, "((q) AND (a:filter))", h.CreateSimpleQueryString("q"))
	assert.Equal(t, "((q*) AND (a:filter))", h.CreateAdvancedQueryString("q*"))
}

func TestSearchHandler_CreateBoostQueryString(t *testing.T) {
	h := newTestHandler(t, HandlerSpec{
		DismaxFields: []string{"a"},
		DismaxParams: []Param{
			{Name: "bq", Value: "format:Book^10"},
			{Name: "bf", Value: "recip(ms(NOW,date),3.16e-11,1,1)^2  log(pop)"},
		},
	})
	assert.Equal(t,
		`(a:b) AND (*:* OR format:Book^10 OR _val_:"recip(ms(NOW,date),3.16e-11,1,1)"^2 OR _val_:"log(pop)")`,
		h.CreateBoostQueryString("a:b"))

	plain := newTestHandler(t, HandlerSpec{DismaxFields: []string{"a"}})
	assert.Equal(t, "a:b", plain.CreateBoostQueryString("a:b"))

	standard := newTestHandler(t, HandlerSpec{})
	assert.Equal(t, "a:b", standard.CreateBoostQueryString("a:b"))
}

func TestSearchHandler_SpecDropsExactSettings(t *testing.T) {
	h := newTestHandler(t, HandlerSpec{
		DismaxFields:  []string{"a"},
		ExactSettings: &HandlerSpec{DismaxFields: []string{"b"}},
	})
	assert.Nil(t, h.Spec().ExactSettings)
	assert.Equal(t, []string{"a"}, h.DismaxFields())
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a b c", []string{"a", "b", "c"}},
		{`a "b c" d`, []string{"a", `"b c"`, "d"}},
		{"a AND b c", []string{"a AND b", "c"}},
		{"a OR b OR c", []string{"a OR b OR c"}},
		{"a NOT", []string{"a NOT"}},
		{`708396 "foo\"bar"`, []string{"708396", `"foo\"bar"`}},
		{"  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.input))
		})
	}
}
