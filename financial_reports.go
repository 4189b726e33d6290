package corebank

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"time"

	"github.com/xuri/excelize/v2"
)

// FinancialReports is C10 / EOD Job 7: Trial Balance CSV plus Balance
// Sheet XLSX, grounded in the teacher's reporting.go
// (GenerateBalanceSheet's group-by-account-type, side-by-side-totals
// shape), rebuilt here against the GL-Balance rows Job 5 already wrote
// instead of the teacher's QueryAPI.GetTrialBalance, and written to
// disk via encoding/csv and excelize rather than returned as an
// in-memory FinancialStatement.
type FinancialReports struct {
	storage *Storage
	coa *ChartOfAccounts
	registry *AccountRegistry
	md *MasterData
	outDir string
}

func NewFinancialReports(storage *Storage, coa *ChartOfAccounts, registry *AccountRegistry, md *MasterData, outDir string) *FinancialReports {
	return &FinancialReports{storage: storage, coa: coa, registry: registry, md: md, outDir: outDir}
}

// OutDir returns the directory report files are written under, for
// callers (the HTTP download endpoint) that need to locate them.
func (f *FinancialReports) OutDir() string { return f.outDir }

// trialBalanceRow is one GL's line in the trial balance.
type trialBalanceRow struct {
	GLNum string
	Name string
	OpeningBal Money
	DrSum Money
	CrSum Money
	ClosingBal Money
}

// Generate produces both reports for eodDate under
// <outDir>/<yyyymmdd>/, failing with CodeTrialBalanceImbalanced if the
// re-checked DR=CR invariant does not hold across every active GL
// (E6). Returns the number of GL rows the trial balance covers.
func (f *FinancialReports) Generate(eodDate time.Time) (int, error) {
	active := f.coa.ActiveGLs(f.registry, f.md)
	rows := make([]trialBalanceRow, 0, len(active))
	var totalDr, totalCr Money

	for _, gl := range active {
		bal, found, err := f.storage.GetBalanceRow(BalanceKindGL, gl, eodDate)
		if err != nil {
			return 0, IOErrorf(CodeReportWrite, err, "reading GL balance row for %q", gl)
		}
		if !found {
			continue
		}
		setup, _ := f.coa.Get(gl)
		rows = append(rows, trialBalanceRow{
			GLNum: gl,
			Name: setup.Name,
			OpeningBal: bal.OpeningBal,
			DrSum: bal.DrSummation,
			CrSum: bal.CrSummation,
			ClosingBal: bal.ClosingBal,
		})
		totalDr = totalDr.Add(bal.DrSummation)
		totalCr = totalCr.Add(bal.CrSummation)
	}

	if !totalDr.Equal(totalCr) {
		return 0, InvariantViolationf(CodeTrialBalanceImbalanced, "trial balance for %s does not balance: dr=%s cr=%s", dateKey(eodDate), totalDr, totalCr)
	}

	dayDir := filepath.Join(f.outDir, dateKey(eodDate))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "creating report directory %q", dayDir)
	}

	if err := f.writeTrialBalanceCSV(dayDir, eodDate, rows, totalDr, totalCr); err != nil {
		return 0, err
	}
	if err := f.writeBalanceSheetXLSX(dayDir, eodDate); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (f *FinancialReports) writeTrialBalanceCSV(dayDir string, eodDate time.Time, rows []trialBalanceRow, totalDr, totalCr Money) error {
	path := filepath.Join(dayDir, "TrialBalance_"+dateKey(eodDate)+".csv")
	file, err := os.Create(path)
	if err != nil {
		return IOErrorf(CodeReportWrite, err, "creating %q", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"GL_Code", "GL_Name", "Opening_Bal", "DR_Summation", "CR_Summation", "Closing_Bal"}
	if err := w.Write(header); err != nil {
		return IOErrorf(CodeReportWrite, err, "writing trial balance header")
	}
	for _, r := range rows {
		record := []string{
			r.GLNum, r.Name,
			r.OpeningBal.String(), r.DrSum.String(), r.CrSum.String(), r.ClosingBal.String(),
		}
		if err := w.Write(record); err != nil {
			return IOErrorf(CodeReportWrite, err, "writing trial balance row for %q", r.GLNum)
		}
	}
	total := []string{"TOTAL", "", "", totalDr.String(), totalCr.String(), ""}
	if err := w.Write(total); err != nil {
		return IOErrorf(CodeReportWrite, err, "writing trial balance total row")
	}
	w.Flush()
	return w.Error()
}

// side classifies a GL for the balance sheet's two-column layout:
// liabilities+expenditure on the left, assets+income on the right.
// Interest-income leaves (prefix 24) land on the right and
// interest-expenditure leaves (prefix 14) land on the left.
func side(glNum string) string {
	switch Classify(glNum) {
	case GLLiability, GLExpenditure:
		return "liability"
	default:
		return "asset"
	}
}

func (f *FinancialReports) writeBalanceSheetXLSX(dayDir string, eodDate time.Time) error {
	bsGLs := f.coa.BalanceSheetGLs(f.registry, f.md)

	type lineItem struct {
		GLNum string
		Name string
		Closing Money
	}
	var liabilities, assets []lineItem
	var totalLiab, totalAsset Money

	for _, gl := range bsGLs {
		bal, found, err := f.storage.GetBalanceRow(BalanceKindGL, gl, eodDate)
		if err != nil {
			return IOErrorf(CodeReportWrite, err, "reading GL balance row for %q", gl)
		}
		if !found {
			continue
		}
		setup, _ := f.coa.Get(gl)
		item := lineItem{GLNum: gl, Name: setup.Name, Closing: bal.ClosingBal}
		if side(gl) == "liability" {
			liabilities = append(liabilities, item)
			totalLiab = totalLiab.Add(bal.ClosingBal)
		} else {
			assets = append(assets, item)
			totalAsset = totalAsset.Add(bal.ClosingBal)
		}
	}

	xf := excelize.NewFile()
	defer xf.Close()
	const sheet = "Balance Sheet"
	xf.SetSheetName("Sheet1", sheet)

	title := fmt.Sprintf("BALANCE SHEET - %s", dateKey(eodDate))
	xf.SetCellValue(sheet, "A1", title)
	_ = xf.MergeCell(sheet, "A1", "C1")
	xf.SetCellValue(sheet, "E1", title)
	_ = xf.MergeCell(sheet, "E1", "G1")

	xf.SetCellValue(sheet, "A2", "LIABILITIES")
	xf.SetCellValue(sheet, "E2", "ASSETS")

	xf.SetCellValue(sheet, "A3", "GL Code")
	xf.SetCellValue(sheet, "B3", "GL Name")
	xf.SetCellValue(sheet, "C3", "Balance")
	xf.SetCellValue(sheet, "E3", "GL Code")
	xf.SetCellValue(sheet, "F3", "GL Name")
	xf.SetCellValue(sheet, "G3", "Balance")

	rows := len(liabilities)
	if len(assets) > rows {
		rows = len(assets)
	}
	for i := 0; i < rows; i++ {
		r := strconv.Itoa(i + 4)
		if i < len(liabilities) {
			li := liabilities[i]
			xf.SetCellValue(sheet, "A"+r, li.GLNum)
			xf.SetCellValue(sheet, "B"+r, li.Name)
			xf.SetCellValue(sheet, "C"+r, li.Closing.String())
		}
		if i < len(assets) {
			as := assets[i]
			xf.SetCellValue(sheet, "E"+r, as.GLNum)
			xf.SetCellValue(sheet, "F"+r, as.Name)
			xf.SetCellValue(sheet, "G"+r, as.Closing.String())
		}
	}

	totalRow := strconv.Itoa(rows + 4)
	xf.SetCellValue(sheet, "B"+totalRow, "TOTAL")
	xf.SetCellValue(sheet, "C"+totalRow, totalLiab.String())
	xf.SetCellValue(sheet, "F"+totalRow, "TOTAL")
	xf.SetCellValue(sheet, "G"+totalRow, totalAsset.String())

	path := filepath.Join(dayDir, "BalanceSheet_"+dateKey(eodDate)+".xlsx")
	if err := xf.SaveAs(path); err != nil {
		return IOErrorf(CodeReportWrite, err, "saving %q", path)
	}
	return nil
}
