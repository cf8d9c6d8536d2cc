package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// LoadCSV reads a dataset file. See ReadCSV.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(f)
}

// ReadCSV parses a header row followed by records. Empty cells of the
// required columns are null.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &MalformedInputError{Reason: "csv parse failed", Err: err}
	}

	if len(rows) == 0 {
		return nil, &MalformedInputError{Missing: RequiredColumns}
	}

	headers := rows[0]
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MalformedInputError{Missing: missing}
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := Record{
			CustomerMessage: nullable(row[index[ColumnMessage]]),
			Name:            nullable(row[index[ColumnName]]),
			ContactInfo:     nullable(row[index[ColumnContact]]),
		}
		for j, h := range headers {
			switch h {
			case ColumnMessage, ColumnName, ColumnContact:
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string, len(headers)-len(RequiredColumns))
			}
			rec.Extra[h] = row[j]
		}
		records = append(records, rec)
	}

	return New(headers, records), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// WriteCSV writes the input columns followed by every flag column, one row
// per record in the original order.
func WriteCSV(w io.Writer, d *Dataset) error {
	writer := csv.NewWriter(w)
	flagNames := d.FlagNames()

	header := make([]string, 0, len(d.Columns)+len(flagNames))
	header = append(header, d.Columns...)
	header = append(header, flagNames...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	row := make([]string, len(header))
	for i, rec := range d.Records {
		for j, col := range d.Columns {
			row[j], _ = rec.Field(col)
		}
		for j, name := range flagNames {
			row[len(d.Columns)+j] = d.flags[name][i].String()
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
