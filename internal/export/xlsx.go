package export

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/mission-cli/internal/model"
)

const (
	contactsSheet = "Contacts"
	profileSheet  = "Profile"
)

// WriteXLSX writes the ranked contacts and the mission profile as a workbook.
func WriteXLSX(w io.Writer, mc model.MissionContext, contacts []model.Contact) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(contactsSheet)
	if err != nil {
		return eris.Wrap(err, "export: add contacts sheet")
	}
	addRow(sheet, Columns)
	for _, c := range contacts {
		addRow(sheet, Row(c))
	}

	prof, err := f.AddSheet(profileSheet)
	if err != nil {
		return eris.Wrap(err, "export: add profile sheet")
	}
	p := mc.Profile
	for _, kv := range [][]string{
		{"Mission", mc.MissionID},
		{"Account", mc.AccountID},
		{"Industries", strings.Join(p.Industries, ", ")},
		{"Company sizes", strings.Join(p.CompanySizes, ", ")},
		{"Locations", strings.Join(p.Locations, ", ")},
		{"Target titles", strings.Join(p.TargetTitles, ", ")},
		{"Avoid", p.AvoidList},
	} {
		addRow(prof, kv)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// ReadXLSX returns every row of the contacts sheet in a workbook written by
// WriteXLSX, header included.
func ReadXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open xlsx")
	}
	sheet, ok := f.Sheet[contactsSheet]
	if !ok {
		return nil, eris.Errorf("export: sheet %q not found", contactsSheet)
	}
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// XLSXSink writes the workbook to Path.
type XLSXSink struct {
	Path string
}

func (s XLSXSink) Name() string { return "xlsx" }

func (s XLSXSink) Export(_ context.Context, mc model.MissionContext, contacts []model.Contact) (Result, error) {
	f, err := os.Create(s.Path)
	if err != nil {
		return Result{}, eris.Wrapf(err, "export: create %s", s.Path)
	}
	if err := WriteXLSX(f, mc, contacts); err != nil {
		_ = f.Close()
		return Result{}, err
	}
	if err := f.Close(); err != nil {
		return Result{}, eris.Wrapf(err, "export: close %s", s.Path)
	}
	return Result{Sink: s.Name(), Created: len(contacts)}, nil
}
