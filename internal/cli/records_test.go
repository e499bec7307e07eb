package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcq/internal/marc"
	"github.com/roach88/marcq/internal/serialization"
)

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	iso := writeCollection(t, dir, "a.mrc", serialization.ISO2709, sampleRecords()...)
	xml := writeCollection(t, dir, "b.xml", serialization.MARCXML, sampleRecords()...)
	js := writeCollection(t, dir, "c.json.gz", serialization.MARCJSON, sampleRecords()...)

	stdout, _, err := execute(t, nil, "detect", iso, xml, js)
	require.NoError(t, err)
	assert.Equal(t, iso+"\tiso2709\n"+xml+"\tmarcxml\n"+js+"\tmarcjson\n", stdout)
}

func TestDetect_JSON(t *testing.T) {
	dir := t.TempDir()
	xml := writeCollection(t, dir, "b.xml", serialization.MARCXML, sampleRecords()...)

	stdout, _, err := execute(t, nil, "--format", "json", "detect", xml)
	require.NoError(t, err)

	resp := decodeResponse(t, stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"file": xml, "format": "marcxml"},
	}, resp.Data)
}

func TestDetect_Unrecognized(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("hello"), 0o644))

	stdout, _, err := execute(t, nil, "detect", text)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "\tunknown")
}

func TestDetect_MissingFile(t *testing.T) {
	stdout, _, err := execute(t, nil, "detect", filepath.Join(t.TempDir(), "missing.mrc"))
	assertExit(t, err, ExitCommandError, ErrCodeNotFound)
	assert.Contains(t, stdout, "Error [E005]")
}

func TestConvert_ToStdout(t *testing.T) {
	tests := []struct {
		from serialization.Format
		name string
		to   string
		want serialization.Format
	}{
		{serialization.ISO2709, "in.mrc", "marcxml", serialization.MARCXML},
		{serialization.ISO2709, "in.mrc.gz", "json", serialization.MARCJSON},
		{serialization.MARCXML, "in.xml", "iso2709", serialization.ISO2709},
		{serialization.MARCJSON, "in.json", "xml", serialization.MARCXML},
	}

	for _, tt := range tests {
		t.Run(tt.name+" to "+tt.to, func(t *testing.T) {
			in := writeCollection(t, t.TempDir(), tt.name, tt.from, sampleRecords()...)

			stdout, _, err := execute(t, nil, "convert", "--to", tt.to, in)
			require.NoError(t, err)

			recs, f := readCollection(t, []byte(stdout))
			assert.Equal(t, tt.want, f)
			assert.Equal(t, []string{"123456", "654321"}, controlNumbers(recs))

			title, ok := recs[0].Field("245")
			require.True(t, ok)
			assert.Equal(t, "Seitsemän veljestä /", title.Subfields[1].Value)
		})
	}
}

func TestConvert_OutputDir(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "converted")
	a := writeCollection(t, in, "a.mrc", serialization.ISO2709, sampleRecords()...)
	b := writeCollection(t, in, "b.xml.gz", serialization.MARCXML, secondRecord())

	stdout, _, err := execute(t, nil, "--format", "json", "convert", "--to", "marcjson", "-o", out, "-j", "2", a, b)
	require.NoError(t, err)

	resp := decodeResponse(t, stdout)
	assert.Equal(t, "ok", resp.Status)
	results, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, a, first["file"])
	assert.Equal(t, "iso2709", first["from"])
	assert.Equal(t, float64(2), first["records"])

	data, err := os.ReadFile(filepath.Join(out, "a.json"))
	require.NoError(t, err)
	recs, f := readCollection(t, data)
	assert.Equal(t, serialization.MARCJSON, f)
	assert.Equal(t, []string{"123456", "654321"}, controlNumbers(recs))

	data, err = os.ReadFile(filepath.Join(out, "b.json"))
	require.NoError(t, err)
	recs, _ = readCollection(t, data)
	assert.Equal(t, []string{"654321"}, controlNumbers(recs))
}

func TestConvert_TextSummary(t *testing.T) {
	in := writeCollection(t, t.TempDir(), "a.xml", serialization.MARCXML, sampleRecords()...)
	out := t.TempDir()

	stdout, _, err := execute(t, nil, "convert", "--to", "iso2709", "-o", out, in)
	require.NoError(t, err)
	assert.Contains(t, stdout, "(2 record(s), 0 skipped)")
	assert.FileExists(t, filepath.Join(out, "a.mrc"))
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeCollection(t, dir, "a.mrc", serialization.ISO2709, sampleRecords()...)
	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("hello"), 0o644))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`[{"fields":[]}, 42]`), 0o644))

	tests := []struct {
		name     string
		args     []string
		exitCode int
		errCode  string
	}{
		{"bad target", []string{"--to", "pdf", good}, ExitCommandError, ErrCodeUsage},
		{"several files without dir", []string{"--to", "xml", good, good}, ExitCommandError, ErrCodeUsage},
		{"missing file", []string{"--to", "xml", filepath.Join(dir, "missing.mrc")}, ExitCommandError, ErrCodeNotFound},
		{"unrecognized file", []string{"--to", "xml", text}, ExitFailure, ErrCodeUnrecognizedInput},
		{"broken collection", []string{"--to", "xml", "-o", t.TempDir(), good, broken}, ExitFailure, ErrCodeInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, nil, append([]string{"convert"}, tt.args...)...)
			assertExit(t, err, tt.exitCode, tt.errCode)
		})
	}
}

func TestConvert_RequiresTo(t *testing.T) {
	_, _, err := execute(t, nil, "convert", "a.mrc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"to" not set`)
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		input string
		to    serialization.Format
		want  string
	}{
		{"records.mrc", serialization.MARCXML, "records.xml"},
		{"/data/export.xml.gz", serialization.MARCJSON, "export.json"},
		{"dump.json.zst", serialization.ISO2709, "dump.mrc"},
		{"archive.tar", serialization.MARCXML, "archive.tar.xml"},
		{"noext", serialization.MARCJSON, "noext.json"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, outputName(tt.input, tt.to))
		})
	}
}

func TestCollectionWriter_Empty(t *testing.T) {
	tests := []struct {
		format serialization.Format
		want   string
	}{
		{serialization.ISO2709, ""},
		{serialization.MARCJSON, "[]\n"},
		{serialization.MARCXML, xmlCollectionStart + xmlCollectionEnd},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, newCollectionWriter(&buf, tt.format).Close())
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSplit(t *testing.T) {
	in := writeCollection(t, t.TempDir(), "a.xml", serialization.MARCXML, sampleRecords()...)

	t.Run("source format", func(t *testing.T) {
		out := t.TempDir()
		stdout, _, err := execute(t, nil, "split", "-o", out, in)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Split 2 marcxml record(s)")

		data, err := os.ReadFile(filepath.Join(out, "000002.xml"))
		require.NoError(t, err)
		rec, f, _, err := serialization.Parse(data)
		require.NoError(t, err)
		assert.Equal(t, serialization.MARCXML, f)
		assert.Equal(t, []string{"654321"}, controlNumbers([]*marc.Record{rec}))
	})

	t.Run("converted", func(t *testing.T) {
		out := t.TempDir()
		stdout, _, err := execute(t, nil, "--format", "json", "split", "-o", out, "--to", "json", in)
		require.NoError(t, err)

		resp := decodeResponse(t, stdout)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "marcxml", data["format"])
		assert.Equal(t, []interface{}{
			filepath.Join(out, "000001.json"),
			filepath.Join(out, "000002.json"),
		}, data["written"])

		raw, err := os.ReadFile(filepath.Join(out, "000001.json"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(raw), "{"))
	})

	t.Run("requires output dir", func(t *testing.T) {
		_, _, err := execute(t, nil, "split", in)
		require.Error(t, err)
	})
}

func TestShow(t *testing.T) {
	in := writeCollection(t, t.TempDir(), "a.xml", serialization.MARCXML, sampleRecords()...)

	t.Run("all records", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "show", in)
		require.NoError(t, err)

		assert.Contains(t, stdout, "=LDR  00000cam a2200000 a 4500\n")
		assert.Contains(t, stdout, "=001  123456\n")
		assert.Contains(t, stdout, "=100  1\\$aKivi, Aleksis,$d1834-1872.\n")
		assert.Contains(t, stdout, "=650  \\7$aromaanit$2yso/fin$0http://www.yso.fi/onto/yso/p1234\n")
		assert.Contains(t, stdout, "\n\n=LDR")
		assert.Contains(t, stdout, "=245  00$aToinen kirja.\n")
	})

	t.Run("index", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "show", "--index", "2", in)
		require.NoError(t, err)
		assert.NotContains(t, stdout, "123456")
		assert.Contains(t, stdout, "=001  654321\n")
	})

	t.Run("tags", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "show", "--tag", "245", "--limit", "1", in)
		require.NoError(t, err)
		assert.Equal(t,
			"=LDR  00000cam a2200000 a 4500\n=245  10$6880-01$aSeitsemän veljestä /$cAleksis Kivi.\n",
			stdout)
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "--format", "json", "show", "--tag", "001", in)
		require.NoError(t, err)

		resp := decodeResponse(t, stdout)
		views := resp.Data.([]interface{})
		require.Len(t, views, 2)
		second := views[1].(map[string]interface{})
		assert.Equal(t, float64(2), second["index"])
		assert.Equal(t, []interface{}{
			map[string]interface{}{"tag": "001", "value": "654321"},
		}, second["fields"])
	})

	t.Run("index out of range", func(t *testing.T) {
		_, _, err := execute(t, nil, "show", "--index", "5", in)
		assertExit(t, err, ExitFailure, ErrCodeNotFound)
	})
}

// writeDamagedISO writes a good record followed by one whose base address is
// not a number.
func writeDamagedISO(t *testing.T, dir string) string {
	t.Helper()
	path := writeCollection(t, dir, "damaged.mrc", serialization.ISO2709, secondRecord())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("00030nam  22xxxxx   4500\x1e\x1d")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

func TestConvert_DamagedRecords(t *testing.T) {
	in := writeDamagedISO(t, t.TempDir())

	t.Run("skipped", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "convert", "--to", "json", in)
		require.NoError(t, err)
		recs, _ := readCollection(t, []byte(stdout))
		assert.Equal(t, []string{"654321"}, controlNumbers(recs))
	})

	t.Run("summary counts the skip", func(t *testing.T) {
		stdout, _, err := execute(t, nil, "convert", "--to", "xml", "-o", t.TempDir(), in)
		require.NoError(t, err)
		assert.Contains(t, stdout, "(1 record(s), 1 skipped)")
	})

	t.Run("strict", func(t *testing.T) {
		_, _, err := execute(t, nil, "convert", "--strict", "--to", "json", in)
		assertExit(t, err, ExitFailure, ErrCodeInvalidRecord)
	})

	t.Run("show", func(t *testing.T) {
		_, _, err := execute(t, nil, "show", in)
		assertExit(t, err, ExitFailure, ErrCodeInvalidRecord)
	})

	t.Run("cache put", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "records.db")
		stdout, _, err := execute(t, nil, "cache", "put", "--db", db, in)
		require.NoError(t, err)
		assert.Equal(t, "✓ Stored 1 record(s) in default (1 skipped)\n", stdout)
	})
}
