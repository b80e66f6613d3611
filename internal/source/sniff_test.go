package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   Dialect
	}{
		{
			name:   "comma",
			sample: "a,b,c\n1,2,3\n4,5,6\n",
			want:   Dialect{Delimiter: ','},
		},
		{
			name:   "semicolon with commas inside values",
			sample: "ciudad;valor\nBogota, D.C.;10\nCali;20\n",
			want:   Dialect{Delimiter: ';'},
		},
		{
			name:   "tab",
			sample: "a\tb\n1\t2\n",
			want:   Dialect{Delimiter: '\t'},
		},
		{
			name:   "pipe",
			sample: "a|b|c\n1|2|3\n",
			want:   Dialect{Delimiter: '|'},
		},
		{
			name:   "quoted fields hide delimiters",
			sample: "\"name\",\"city\"\n\"Perez, Ana\",\"Bogota\"\n\"Ruiz\",\"Cali, Valle\"\n",
			want:   Dialect{Delimiter: ',', Quote: '"'},
		},
		{
			name:   "space after delimiter",
			sample: "a, b, c\n1, 2, 3\n",
			want:   Dialect{Delimiter: ',', SkipInitialSpace: true},
		},
		{
			name:   "header only",
			sample: "ACTIVEC,AÑO,ARL\n",
			want:   Dialect{Delimiter: ','},
		},
		{
			name:   "crlf line endings",
			sample: "a;b\r\n1;2\r\n",
			want:   Dialect{Delimiter: ';'},
		},
		{
			name:   "comma preferred on tie",
			sample: "a,b;c\n1,2;3\n",
			want:   Dialect{Delimiter: ','},
		},
		{
			name:   "single quotes are literal",
			sample: "ACTIVEC,DPTO,N\nMineria,'Meta',3\nPesca,Cali,4\n",
			want:   Dialect{Delimiter: ','},
		},
		{
			name:   "single quotes around every field",
			sample: "'a';'b'\n'1';'2'\n",
			want:   Dialect{Delimiter: ';'},
		},
		{
			name:   "double quotes win over apostrophes",
			sample: "\"name\",\"note\"\n\"O'Brien\",\"it's, fine\"\n",
			want:   Dialect{Delimiter: ',', Quote: '"'},
		},
		{
			name:   "apostrophes in values are not quoting",
			sample: "name,note\nO'Brien,it's fine\n",
			want:   Dialect{Delimiter: ','},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff(tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSniffFailures(t *testing.T) {
	tests := []struct {
		name    string
		sample  string
		wantErr error
	}{
		{"empty", "", ErrNoDelimiter},
		{"blank lines", "\n\n  \n", ErrNoDelimiter},
		{"single column", "ACTIVEC\nConstruccion\nMineria\n", ErrNoDelimiter},
		{"inconsistent", "a,b,c\n1\n2;3\n4\n", ErrNoDelimiter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sniff(tt.sample)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLeadingSample(t *testing.T) {
	text := "ab,c\nde,f\ngh,i\n"

	assert.Equal(t, text, leadingSample(text, 1024))
	assert.Equal(t, "ab,c\nde,f\n", leadingSample(text, 12))
	// no complete line inside the sample: keep the partial text
	assert.Equal(t, "ab", leadingSample(text, 2))
	// counted in characters, not bytes
	assert.Equal(t, "ñ,ñ\n", leadingSample("ñ,ñ\nñ,ñ\n", 5))
}

func TestDialectString(t *testing.T) {
	assert.Equal(t, `delimiter=';' quote=none skipinitialspace=false`, Dialect{Delimiter: ';'}.String())
	assert.Equal(t, `delimiter=',' quote='"' skipinitialspace=true`, Dialect{Delimiter: ',', Quote: '"', SkipInitialSpace: true}.String())
}
