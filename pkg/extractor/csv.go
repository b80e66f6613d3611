package extractor

import (
	"encoding/csv"
	"fmt"
	"os"
)

func writeCSV(path string, header []string, rows [][]string, crlf bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.UseCRLF = crlf

	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}

	return file.Close()
}
