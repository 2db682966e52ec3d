/*
xlsx.go - Excel workbook adapter for export rows

PURPOSE:
  Renders the three export datasets into one workbook with a sheet per
  dataset, for clients that upload spreadsheets rather than CSV.
*/
package export

import (
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook writes a workbook with Payroll, Billing and Compliance
// sheets, each carrying a header row followed by the records.
func WriteWorkbook(w io.Writer, payroll []PayrollRow, billing []BillingRow, compliance []ComplianceRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := addSheet(f, "Payroll", payroll); err != nil {
		return err
	}
	if err := addSheet(f, "Billing", billing); err != nil {
		return err
	}
	if err := addSheet(f, "Compliance", compliance); err != nil {
		return err
	}

	// Drop the implicit default sheet and land on Payroll.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	idx, err := f.GetSheetIndex("Payroll")
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	return f.Write(w)
}

func addSheet[R Row](f *excelize.File, name string, rows []R) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	var zero R
	if err := f.SetSheetRow(name, "A1", toCells(zero.Header())); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, toCells(r.Record())); err != nil {
			return err
		}
	}
	return nil
}

func toCells(values []string) *[]interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return &cells
}
