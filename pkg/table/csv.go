package table

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes the table with a header row. Null cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.columns); err != nil {
		return err
	}

	record := make([]string, len(t.columns))
	for _, r := range t.rows {
		for i, c := range t.columns {
			record[i] = FormatCell(r[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
