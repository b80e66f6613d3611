package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultReader(t *testing.T) *Reader {
	t.Helper()
	encs, err := LookupEncodings(DefaultEncodings)
	require.NoError(t, err)
	return NewReader(encs, DefaultSampleSize)
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestReadFileEachEncoding(t *testing.T) {
	tests := []struct {
		encoding string
		delim    rune
		want     string
	}{
		{"utf-8", ',', "utf-8"},
		// latin-1 accepts any byte, so cp1252 content is read as latin-1 first
		{"latin-1", ';', "latin-1"},
		{"cp1252", '\t', "latin-1"},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			enc, err := LookupEncoding(tt.encoding)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WriteFixture(&buf, enc, tt.delim, 25, false))
			path := writeFile(t, buf.Bytes())

			table, attempts, err := defaultReader(t).ReadFile(context.Background(), path)
			require.NoError(t, err)

			assert.Equal(t, tt.want, table.Encoding)
			assert.Equal(t, tt.delim, table.Dialect.Delimiter)
			assert.Equal(t, path, table.Path)
			assert.Equal(t, FixtureHeader, table.Headers)
			assert.Len(t, table.Rows, 25)
			assert.Equal(t, "Construcción", table.Rows[0][0])
			assert.Equal(t, "2024", table.Rows[1][1])
			assert.True(t, attempts[len(attempts)-1].Parsed())
		})
	}
}

func TestReadFileLatin1FallsBackFromUTF8(t *testing.T) {
	path := writeFile(t, []byte("A\xD1O,ARL\n2023,ARL-1\n"))

	table, attempts, err := defaultReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Parsed())
	var decErr *DecodeError
	assert.True(t, errors.As(attempts[0].Err, &decErr))
	assert.Equal(t, "latin-1", table.Encoding)
	assert.Equal(t, []string{"AÑO", "ARL"}, table.Headers)
}

func TestReadFileTrimsHeaders(t *testing.T) {
	path := writeFile(t, []byte(" ACTIVEC , NUM CASOS ,DPTO\nMineria, 3 ,Meta\n"))

	table, _, err := defaultReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ACTIVEC", "NUM CASOS", "DPTO"}, table.Headers)
	// values are kept verbatim
	assert.Equal(t, []string{"Mineria", " 3 ", "Meta"}, table.Rows[0])
}

func TestReadFileKeepsRaggedRows(t *testing.T) {
	var data bytes.Buffer
	data.WriteString("a,b,c\n4,5\n")
	for i := 0; i < 10; i++ {
		data.WriteString("1,2,3\n")
	}
	path := writeFile(t, data.Bytes())

	table, _, err := defaultReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 11)
	assert.Len(t, table.Rows[0], 2)
}

func TestReadFileHeaderOnly(t *testing.T) {
	path := writeFile(t, []byte("ACTIVEC,AÑO,ARL\n"))

	table, _, err := defaultReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, table.Headers, 3)
	assert.Empty(t, table.Rows)
}

func TestReadFileSkipsBlankLines(t *testing.T) {
	path := writeFile(t, []byte("a,b\n\n1,2\n\n3,4\n"))

	table, _, err := defaultReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestReadFileQuotedMultiline(t *testing.T) {
	path := writeFile(t, []byte("name,notes\n\"Ana\",\"line one\nline two\"\n\"Luis\",\"x, y\"\n"))

	table, _, err := defaultReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "line one\nline two", table.Rows[0][1])
	assert.Equal(t, "x, y", table.Rows[1][1])
}

func TestReadFileExhausted(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty file", nil},
		{"single column", []byte("ACTIVEC\nMineria\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.data)

			table, attempts, err := defaultReader(t).ReadFile(context.Background(), path)
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, errors.Is(err, ErrEncodingsExhausted))
			require.Len(t, attempts, 3)
			for _, a := range attempts {
				assert.False(t, a.Parsed())
				assert.Error(t, a.Err)
			}
		})
	}
}

func TestReadFileSingleQuotesAreText(t *testing.T) {
	path := writeFile(t, []byte("ACTIVEC,DPTO,N\nMineria,'Meta',3\nPesca,Cali,4\n"))

	table, _, err := defaultReader(t).ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", table.Encoding)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Mineria", "'Meta'", "3"}, table.Rows[0])
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := defaultReader(t).ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEncodingsExhausted))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadFileCancelled(t *testing.T) {
	path := writeFile(t, []byte("a,b\n1,2\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := defaultReader(t).ReadFile(ctx, path)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTryEncodingSmallSample(t *testing.T) {
	var data bytes.Buffer
	data.WriteString("a,b\n")
	for i := 0; i < 200; i++ {
		data.WriteString("valor largo,otro valor\n")
	}

	attempt := TryEncoding(data.Bytes(), Encoding{Name: "utf-8"}, 40)
	require.True(t, attempt.Parsed(), "err: %v", attempt.Err)
	assert.Len(t, attempt.Table.Rows, 200)
}
