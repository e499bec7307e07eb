package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gzip "github.com/klauspost/pgzip"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marcq/internal/config"
	"github.com/roach88/marcq/internal/marc"
	"github.com/roach88/marcq/internal/serialization"
	"github.com/roach88/marcq/internal/testutil"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeResponse parses a JSON CLI response.
func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

// assertExit checks the exit code and error code of a failed command.
func assertExit(t *testing.T, err error, exitCode int, errCode string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, exitCode, GetExitCode(err), "error: %v", err)
	assert.Contains(t, err.Error(), errCode)
}

func secondRecord() *marc.Record {
	return marc.NewRecord(testutil.SampleLeader,
		marc.NewControlField("001", "654321"),
		marc.NewDataField("245", "0", "0", marc.Subfield{Code: "a", Value: "Toinen kirja."}),
	)
}

func sampleRecords() []*marc.Record {
	return []*marc.Record{testutil.SampleRecord(), secondRecord()}
}

// writeCollection writes recs as a collection in format f. Names ending in
// .gz are compressed.
func writeCollection(t *testing.T, dir, name string, f serialization.Format, recs ...*marc.Record) string {
	t.Helper()

	var buf bytes.Buffer
	cw := newCollectionWriter(&buf, f)
	for _, rec := range recs {
		require.NoError(t, cw.Write(rec))
	}
	require.NoError(t, cw.Close())

	data := buf.Bytes()
	if strings.HasSuffix(name, ".gz") {
		var zbuf bytes.Buffer
		zw := gzip.NewWriter(&zbuf)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		data = zbuf.Bytes()
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// readCollection parses every record of an uncompressed collection.
func readCollection(t *testing.T, data []byte) ([]*marc.Record, serialization.Format) {
	t.Helper()
	raws, f, err := serialization.SplitCollection(data)
	require.NoError(t, err)

	recs := make([]*marc.Record, len(raws))
	for i, raw := range raws {
		rec, _, _, err := serialization.Parse(raw)
		require.NoError(t, err)
		recs[i] = rec
	}
	return recs, f
}

func controlNumbers(recs []*marc.Record) []string {
	ids := make([]string, len(recs))
	for i, rec := range recs {
		if f, ok := rec.Field("001"); ok {
			ids[i] = f.Value
		}
	}
	return ids
}
