package interfaces

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	masterdata "site-registry/internal/masterdata/domain"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var siteHeaders = []string{
	"ID", "Name", "Country", "Installation Date", "Max Power (MW)", "Min Power (MW)",
	"Useful Energy @1MW", "Efficiency", "Groups",
}

// BuildSitesPDF renders the site inventory as a landscape table.
func BuildSitesPDF(sites []masterdata.Site, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Site Inventory")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sites: %d", len(sites)))
	pdf.Ln(8)

	widths := []float64{12, 50, 18, 28, 25, 25, 32, 22, 65}
	pdf.SetFont("Arial", "B", 9)
	for i, header := range siteHeaders {
		pdf.CellFormat(widths[i], 6, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, site := range sites {
		cells := siteRow(site)
		for i, cell := range cells {
			align := "L"
			if i == 0 || (i >= 4 && i <= 7) {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSitesXLSX renders the site inventory with one row per site and a
// second sheet listing groups by site.
func BuildSitesXLSX(sites []masterdata.Site) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sitesSheet := "sites"
	membershipSheet := "memberships"
	if err := f.SetSheetName("Sheet1", sitesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(membershipSheet); err != nil {
		return nil, err
	}

	for i, header := range siteHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sitesSheet, cell, header)
	}
	for i, site := range sites {
		row := i + 2
		_ = f.SetCellValue(sitesSheet, fmt.Sprintf("A%d", row), site.ID)
		_ = f.SetCellValue(sitesSheet, fmt.Sprintf("B%d", row), site.Name)
		_ = f.SetCellValue(sitesSheet, fmt.Sprintf("C%d", row), string(site.Country))
		_ = f.SetCellValue(sitesSheet, fmt.Sprintf("D%d", row), site.InstallationDate.Format(masterdata.DateLayout))
		_ = f.SetCellValue(sitesSheet, fmt.Sprintf("E%d", row), site.MaxPowerMegawatt)
		_ = f.SetCellValue(sitesSheet, fmt.Sprintf("F%d", row), site.MinPowerMegawatt)
		if site.UsefulEnergyAt1Megawatt != nil {
			_ = f.SetCellValue(sitesSheet, fmt.Sprintf("G%d", row), *site.UsefulEnergyAt1Megawatt)
		}
		if site.Efficiency != nil {
			_ = f.SetCellValue(sitesSheet, fmt.Sprintf("H%d", row), *site.Efficiency)
		}
		_ = f.SetCellValue(sitesSheet, fmt.Sprintf("I%d", row), groupNames(site.Groups))
	}

	_ = f.SetCellValue(membershipSheet, "A1", "Site ID")
	_ = f.SetCellValue(membershipSheet, "B1", "Site")
	_ = f.SetCellValue(membershipSheet, "C1", "Group ID")
	_ = f.SetCellValue(membershipSheet, "D1", "Group")
	_ = f.SetCellValue(membershipSheet, "E1", "Type")
	row := 2
	for _, site := range sites {
		for _, group := range site.Groups {
			_ = f.SetCellValue(membershipSheet, fmt.Sprintf("A%d", row), site.ID)
			_ = f.SetCellValue(membershipSheet, fmt.Sprintf("B%d", row), site.Name)
			_ = f.SetCellValue(membershipSheet, fmt.Sprintf("C%d", row), group.ID)
			_ = f.SetCellValue(membershipSheet, fmt.Sprintf("D%d", row), group.Name)
			_ = f.SetCellValue(membershipSheet, fmt.Sprintf("E%d", row), string(group.Type))
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func siteRow(site masterdata.Site) []string {
	return []string{
		fmt.Sprintf("%d", site.ID),
		site.Name,
		string(site.Country),
		site.InstallationDate.Format(masterdata.DateLayout),
		fmt.Sprintf("%.2f", site.MaxPowerMegawatt),
		fmt.Sprintf("%.2f", site.MinPowerMegawatt),
		optionalFloat(site.UsefulEnergyAt1Megawatt, "%.3f"),
		optionalFloat(site.Efficiency, "%.3f"),
		groupNames(site.Groups),
	}
}

func optionalFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func groupNames(groups []masterdata.Group) string {
	names := make([]string, 0, len(groups))
	for _, group := range groups {
		names = append(names, group.Name)
	}
	return strings.Join(names, ", ")
}
