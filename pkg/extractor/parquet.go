package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetParallelism is the number of goroutines the writer uses to encode
// row groups.
const parquetParallelism = 4

// parquetNames replaces the characters the writer's metadata syntax
// splits on or drops.
var parquetNames = strings.NewReplacer(",", "_", "\t", "_")

// parquetSchema describes one optional UTF8 column per header.
func parquetSchema(header []string) []string {
	md := make([]string, len(header))
	for i, name := range header {
		md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", parquetNames.Replace(name))
	}
	return md
}

// writeParquet writes header and rows to path, removing the file again if
// the write fails.
func writeParquet(path string, header []string, rows [][]string) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		fw.Close()
		if err != nil {
			os.Remove(path)
		}
	}()

	pw, err := writer.NewCSVWriter(parquetSchema(header), fw, parquetParallelism)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range rows {
		values := make([]*string, len(row))
		for j := range row {
			values[j] = &row[j]
		}
		if err := pw.WriteString(values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return fw.Close()
}
