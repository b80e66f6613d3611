package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// DefaultSampleSize is the number of leading characters used for dialect
// sniffing.
const DefaultSampleSize = 1024

// Table is a parsed CSV file: trimmed headers plus raw string rows.
type Table struct {
	Path     string
	Encoding string
	Dialect  Dialect
	Headers  []string
	Rows     [][]string
}

// Attempt is the outcome of parsing the input under one candidate encoding.
// Table is set when the attempt parsed cleanly, Err otherwise.
type Attempt struct {
	Encoding string
	Table    *Table
	Err      error
}

// Parsed reports whether the attempt succeeded.
func (a Attempt) Parsed() bool {
	return a.Table != nil
}

// Reader parses a CSV file under an ordered list of candidate encodings.
type Reader struct {
	encodings  []Encoding
	sampleSize int
}

// NewReader creates a Reader. A non-positive sampleSize uses DefaultSampleSize.
func NewReader(encodings []Encoding, sampleSize int) *Reader {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Reader{
		encodings:  encodings,
		sampleSize: sampleSize,
	}
}

// ReadFile tries each candidate encoding in order and returns the first clean
// parse. Every attempt is returned for reporting. When all candidates fail the
// error wraps ErrEncodingsExhausted together with each attempt's reason.
func (r *Reader) ReadFile(ctx context.Context, path string) (*Table, []Attempt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	attempts := make([]Attempt, 0, len(r.encodings))
	reasons := make([]error, 0, len(r.encodings))
	for _, enc := range r.encodings {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		attempt := TryEncoding(data, enc, r.sampleSize)
		attempts = append(attempts, attempt)
		if attempt.Parsed() {
			attempt.Table.Path = path
			return attempt.Table, attempts, nil
		}
		reasons = append(reasons, fmt.Errorf("%s: %w", enc.Name, attempt.Err))
	}

	return nil, attempts, fmt.Errorf("%s: %w: %w", path, ErrEncodingsExhausted, errors.Join(reasons...))
}

// TryEncoding decodes data with enc, sniffs the dialect from the leading
// sampleSize characters and parses the whole content. Nothing from a failed
// attempt is kept.
func TryEncoding(data []byte, enc Encoding, sampleSize int) Attempt {
	attempt := Attempt{Encoding: enc.Name}

	text, err := enc.Decode(data)
	if err != nil {
		attempt.Err = err
		return attempt
	}

	dialect, err := Sniff(leadingSample(text, sampleSize))
	if err != nil {
		attempt.Err = err
		return attempt
	}

	headers, rows, err := parse(text, dialect)
	if err != nil {
		attempt.Err = err
		return attempt
	}

	attempt.Table = &Table{
		Encoding: enc.Name,
		Dialect:  dialect,
		Headers:  headers,
		Rows:     rows,
	}
	return attempt
}

func parse(text string, dialect Dialect) ([]string, [][]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = dialect.Delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = dialect.SkipInitialSpace
	// Field counts are checked by the staging loader.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, ErrNoHeader
	}
	if err != nil {
		return nil, nil, err
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, record)
	}
	return headers, rows, nil
}

// leadingSample returns the first n characters of text. A truncated sample is
// cut back to its last complete line when it has one.
func leadingSample(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	end, count := 0, 0
	for i := range text {
		if count == n {
			end = i
			break
		}
		count++
	}
	sample := text[:end]

	if i := strings.LastIndexByte(sample, '\n'); i >= 0 {
		return sample[:i+1]
	}
	return sample
}
