/*
csv.go - CSV and JSON adapters for export rows

PURPOSE:
  Trivial serialization of the row shapes built in builder.go. The rows
  carry their own tabular form (Header/Record), so one generic writer
  covers all three shapes.
*/
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
)

// WriteCSV writes a header line followed by one record per row.
func WriteCSV[R Row](w io.Writer, rows []R) error {
	cw := csv.NewWriter(w)
	var zero R
	if err := cw.Write(zero.Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the rows as an indented JSON array.
func WriteJSON[R Row](w io.Writer, rows []R) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []R{}
	}
	return enc.Encode(rows)
}
