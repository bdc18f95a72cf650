// Package export renders a category table as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"scandesk/internal/domain"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// excel caps sheet names at 31 characters
const maxSheetName = 31

// Headings returns the column titles for cat: its fields in declaration
// order, the resolution columns for reconciliation categories, then status.
func Headings(cat domain.Category) []string {
	h := cat.FieldNames()
	if cat.Reconcile != nil {
		h = append(h, "Code", "ItemCode")
	}
	return append(h, "Status", "Detail", "ScannedAt")
}

func row(cat domain.Category, rec domain.ScanRecord) []string {
	out := make([]string, 0, len(cat.Fields)+5)
	for _, name := range cat.FieldNames() {
		out = append(out, rec.Value(name))
	}
	if cat.Reconcile != nil {
		out = append(out, rec.Code, string(rec.ItemCode))
	}
	return append(out, string(rec.Status), rec.Detail, rec.CreatedAt.UTC().Format(time.RFC3339))
}

// Workbook builds a single-sheet workbook of recs. Every cell is written as
// text so scanned codes keep their leading zeros.
func Workbook(cat domain.Category, recs []domain.ScanRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := SheetName(cat.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	write := func(rowNo int, values []string) error {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := write(1, Headings(cat)); err != nil {
		f.Close()
		return nil, err
	}
	for i, rec := range recs {
		if err := write(i+2, row(cat, rec)); err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// Write streams the workbook of recs to w.
func Write(w io.Writer, cat domain.Category, recs []domain.ScanRecord) error {
	f, err := Workbook(cat, recs)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func SheetName(category string) string {
	r := []rune(category)
	if len(r) == 0 {
		return "Sheet1"
	}
	if len(r) > maxSheetName {
		r = r[:maxSheetName]
	}
	return string(r)
}
