// Package reference loads the local tabular reference files and maps their
// free-form column names onto the canonical area schema.
package reference

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Table is a parsed reference file: header-derived column names plus rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Index returns the position of the column named header, or -1.
func (t *Table) Index(header string) int {
	for i, h := range t.Headers {
		if h == header {
			return i
		}
	}
	return -1
}

// ReadTable parses a local tabular file. It tolerates two kinds of ambiguity:
// a file whose naive comma parse yields exactly one column is re-parsed as
// semicolon-delimited, and a file that is not valid UTF-8 is re-decoded as
// Latin-1. If no combination yields a parseable table the error is a
// *DataFormatError.
func ReadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DataFormatError{Path: path, Err: err}
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &DataFormatError{Path: path, Err: fmt.Errorf("latin-1 decode failed: %w", err)}
		}
		data = decoded
	}

	table, err := parseDelimited(data, ',')
	if err == nil && len(table.Headers) == 1 {
		// Single column usually means the file is semicolon-delimited.
		if retried, retryErr := parseDelimited(data, ';'); retryErr == nil && len(retried.Headers) > 1 {
			return retried, nil
		}
		return table, nil
	}
	if err != nil {
		retried, retryErr := parseDelimited(data, ';')
		if retryErr != nil {
			return nil, &DataFormatError{Path: path, Err: err}
		}
		return retried, nil
	}
	return table, nil
}

func parseDelimited(data []byte, comma rune) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}

	return &Table{
		Headers: records[0],
		Rows:    records[1:],
	}, nil
}
