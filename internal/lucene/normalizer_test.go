package lucene

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T, cfg Config) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return n
}

func TestNormalizer_Wildcards(t *testing.T) {
	tests := []struct {
		name  string
		mode  WildcardMode
		input string
		want  string
	}{
		{"trailing star", WildcardsStrip, "cat*", "cat"},
		{"leading star", WildcardsStrip, "*cat", "cat"},
		{"both ends", WildcardsStrip, "*cat?", "cat"},
		{"every term", WildcardsStrip, "cat* ?dog mouse??", "cat dog mouse"},
		{"field value", WildcardsStrip, "title:cat*", "title:cat"},
		{"any value", WildcardsStrip, "field:*", "field:*"},
		{"range with wildcards", WildcardsStrip, "[a* TO z*]", "[a* TO z*]"},
		{"open range", WildcardsStrip, "year:{* TO *}", "year:{* TO *}"},
		{"mid term", WildcardsStrip, "c*t wom?n", "c*t wom?n"},
		{"quoted", WildcardsStrip, `"cat*" dog*`, `"cat*" dog`},
		{"escaped", WildcardsStrip, `cat\*`, `cat\*`},
		{"grouped", WildcardsStrip, "(cat* OR dog*)", "(cat OR dog)"},
		{"lone star", WildcardsStrip, "*", ""},
		{"leading mode", WildcardsLeading, "*cat*", "cat*"},
		{"empty mode strips", "", "cat*", "cat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Wildcards = tt.mode
			got, err := newTestNormalizer(t, cfg).NormalizeSearchString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_Unicode(t *testing.T) {
	tests := []struct {
		form  string
		input string
		want  string
	}{
		{"NFKC", "ﬁsh", "fish"},
		{"nfc", "e\u0301tude", "\u00e9tude"},
		{"NFD", "\u00e9tude", "e\u0301tude"},
		{"NFKD", "ﬁ\u00e9", "fie\u0301"},
		{"none", "ﬁsh", "ﬁsh"},
		{"", "ﬁsh", "ﬁsh"},
	}
	for _, tt := range tests {
		t.Run(tt.form, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.UnicodeNormalizationForm = tt.form
			got, err := newTestNormalizer(t, cfg).NormalizeSearchString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_ISBN(t *testing.T) {
	n := newTestNormalizer(t, DefaultConfig())
	tests := map[string]string{
		"0-306-40615-2":         "9780306406157",
		"080442957X":            "9780804429573",
		"9780306406157":         "9780306406157",
		"0306406153":            "0306406153",
		"isbn 0306406152":       "isbn 0306406152",
		"0306406152 0306406152": "0306406152 0306406152",
	}
	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			got, err := n.NormalizeSearchString(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizer_SearchFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SearchFilters = []string{`/\bbadword\b/i`, `^x{10,}$`}
	n := newTestNormalizer(t, cfg)

	_, err := n.NormalizeSearchString("some BadWord here")
	require.Error(t, err)
	assert.True(t, IsFilterError(err))
	var fe *FilterError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, `/\bbadword\b/i`, fe.Filter)

	_, err = n.NormalizeSearchString("xxxxxxxxxxxx")
	assert.True(t, IsFilterError(err))

	got, err := n.NormalizeSearchString("badwords are fine")
	require.NoError(t, err)
	assert.Equal(t, "badwords are fine", got)
}

func TestNewNormalizer_Errors(t *testing.T) {
	tests := map[string]func(*Config){
		"bad filter":      func(c *Config) { c.SearchFilters = []string{"/(/"} },
		"bad filter flag": func(c *Config) { c.SearchFilters = []string{"/a/q"} },
		"bad form":        func(c *Config) { c.UnicodeNormalizationForm = "NFX" },
		"bad wildcards":   func(c *Config) { c.Wildcards = "all" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := NewNormalizer(cfg)
			assert.Error(t, err)
		})
	}
}

func TestFinalizeSearchString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"foo -bar", `foo \-bar`},
		{"foo-bar", "foo-bar"},
		{"foo !-bar", "foo -bar"},
		{"-bar", `\-bar`},
		{"!-bar", "-bar"},
		{"foo!-bar", "foo!-bar"},
		{`"foo -bar"`, `"foo -bar"`},
		{`foo \-bar`, `foo \-bar`},
		{`a "b" -c`, `a "b" \-c`},
		{`a \"b -c`, `a \"b \-c`},
		{"ääkköset -öö", `ääkköset \-öö`},
	}
	n := newTestNormalizer(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, n.FinalizeSearchString(tt.input))
		})
	}
}

func TestSpellcheckTerms(t *testing.T) {
	n := newTestNormalizer(t, DefaultConfig())
	assert.Equal(t, "one two three four five", n.SpellcheckTerms("one two three four five"))
	assert.Equal(t, "", n.SpellcheckTerms("one two three four five six"))
	assert.Equal(t, "seven brothers", n.SpellcheckTerms("title:seven brothers"))

	unlimited := newTestNormalizer(t, BaseConfig())
	assert.Equal(t, "one two three four five six", unlimited.SpellcheckTerms("one two three four five six"))
}

func TestCompilePattern(t *testing.T) {
	re, err := CompilePattern("/^abc$/im")
	require.NoError(t, err)
	ok, err := re.MatchString("x\nABC")
	require.NoError(t, err)
	assert.True(t, ok)

	re, err = CompilePattern("/unclosed")
	require.NoError(t, err)
	ok, _ = re.MatchString("a/unclosed")
	assert.True(t, ok)
}
