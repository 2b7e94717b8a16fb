package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// chunkCSV emits one chunk per data row, serialized as ordered
// "column: value" pairs. The first row supplies the column names.
func chunkCSV(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV document: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV document: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	return rowsToChunks(records[0], records[1:]), nil
}

// chunkWorkbook emits one chunk per data row of the first sheet, with the
// same serialization as CSV. Receiver is only used for logging sheet issues.
func (ing *Ingestor) chunkWorkbook(path string) ([]Chunk, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			ing.logger.Warn("closing workbook", "path", path, "error", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return rowsToChunks(rows[0], rows[1:]), nil
}

// rowsToChunks serializes data rows against the header row. Row numbers are
// 1-based over the data rows, excluding the header.
func rowsToChunks(header []string, rows [][]string) []Chunk {
	var chunks []Chunk
	for i, row := range rows {
		pairs := make([]string, 0, len(row))
		for col, value := range row {
			name := ""
			if col < len(header) {
				name = strings.TrimSpace(header[col])
			}
			if name == "" {
				name = "column " + strconv.Itoa(col+1)
			}
			pairs = append(pairs, name+": "+value)
		}
		if len(pairs) == 0 {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:     strings.Join(pairs, " | "),
			Metadata: map[string]string{"row": strconv.Itoa(i + 1)},
		})
	}
	return chunks
}
