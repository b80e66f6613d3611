package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FixtureHeader is the column layout of the ARL statistics report.
var FixtureHeader = []string{
	"ACTIVEC", "AÑO", "ARL", "DPTO", "INC_AT", "INC_EL", "MES",
	"MPIO", "MUERTES", "PEN_AT", "PEN_EL", "PRESUNTOS", "DEP", "INDEP",
}

// FixtureRow is the single synthetic record written by EnsureFixture.
var FixtureRow = []string{
	"Construcción", "2023", "ARL-1", "Bogota", "0", "0", "Enero",
	"Bogota", "0", "0", "0", "10", "100", "20",
}

// createFixture opens a new fixture file, failing if it already exists.
var createFixture = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}

// EnsureFixture creates path with the fixture header and one data row when
// it does not exist yet. It reports whether a file was created.
func EnsureFixture(path string, crlf bool) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create fixture directory: %w", err)
	}

	f, err := createFixture(path)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create fixture: %w", err)
	}

	if err := writeFixtureFile(f, crlf); err != nil {
		// a partial fixture would be taken for real input on the next run
		os.Remove(path)
		return false, err
	}
	return true, nil
}

func writeFixtureFile(f io.WriteCloser, crlf bool) error {
	enc, _ := LookupEncoding("utf-8")
	if err := WriteFixture(f, enc, ',', 1, crlf); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close fixture: %w", err)
	}
	return nil
}

// WriteFixture writes the fixture header followed by rows copies of the
// fixture record, encoded with enc and separated by delim. Rows after the
// first get a distinct year so they are distinguishable.
func WriteFixture(w io.Writer, enc Encoding, delim rune, rows int, crlf bool) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = delim
	cw.UseCRLF = crlf

	if err := cw.Write(FixtureHeader); err != nil {
		return fmt.Errorf("failed to write fixture header: %w", err)
	}
	for i := 0; i < rows; i++ {
		record := append([]string(nil), FixtureRow...)
		if i > 0 {
			record[1] = strconv.Itoa(2023 + i)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write fixture row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush fixture: %w", err)
	}

	data, err := enc.Encode(buf.String())
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}
	return nil
}
