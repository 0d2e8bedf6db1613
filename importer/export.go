package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	errorsSheet  = "Errors"
)

// WriteReportXlsx writes a workbook with a Summary sheet of the counters and an Errors
// sheet listing one failed row per line.
func WriteReportXlsx(w io.Writer, report *ImportReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(errorsSheet); err != nil {
		return err
	}

	status := "success"
	if !report.Success {
		status = "errors"
	}
	summary := [][]interface{}{
		{"Status", status},
		{"Total rows", report.TotalRows},
		{"Clients created", report.ClientsCreated},
		{"Clients linked", report.ClientsLinked},
		{"Offers created", report.OffersCreated},
		{"Contracts created", report.ContractsCreated},
		{"Errors", len(report.Errors)},
	}
	for i, line := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return err
		}
	}

	f.SetCellValue(errorsSheet, "A1", "Row")
	f.SetCellValue(errorsSheet, "B1", "Step")
	f.SetCellValue(errorsSheet, "C1", "Message")
	for i, e := range report.Errors {
		f.SetCellValue(errorsSheet, "A"+fmt.Sprint(i+2), e.Row)
		f.SetCellValue(errorsSheet, "B"+fmt.Sprint(i+2), string(e.Step))
		f.SetCellValue(errorsSheet, "C"+fmt.Sprint(i+2), e.Message)
	}
	f.SetColWidth(errorsSheet, "C", "C", 80)
	f.SetColWidth(summarySheet, "A", "A", 20)

	return f.Write(w)
}
