package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// CSVHeader is the fixed header row of the CSV export.
var CSVHeader = []string{
	"Gemeente",
	"NIS Code",
	"Project Code",
	"Project Naam",
	"Categorieën",
	"Totaal Bedrag",
	"2026",
	"2027",
	"2028",
	"2029",
	"2030",
	"2031",
	"Beschrijving",
}

// utf8BOM lets spreadsheet applications detect the encoding.
const utf8BOM = "\ufeff"

// CSVFileName returns the default export file name for day t.
func CSVFileName(t time.Time) string {
	return fmt.Sprintf("gemeentelijke-investeringen-projecten-%s.csv", t.Format("2006-01-02"))
}

// WriteCSV writes projects, in order, as a UTF-8 CSV document with a BOM and
// the CSVHeader row.
func WriteCSV(w io.Writer, projects []model.Project) error {
	defer metrics.Timer(metrics.Export)()

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	row := make([]string, len(CSVHeader))
	for i := range projects {
		p := &projects[i]
		row[0] = p.Municipality
		row[1] = p.NISCode
		row[2] = p.ACCode
		row[3] = p.ACShort
		row[4] = strings.Join(p.Categories, "; ")
		row[5] = decimal(p.TotalAmount)
		for y := 0; y < model.NumYears; y++ {
			row[6+y] = decimal(p.YearlyAmounts[y])
		}
		row[12] = p.ACLong
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the CSV document to path atomically.
func ExportCSV(path string, projects []model.Project) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, projects); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// decimal formats v with two decimals and a dot separator.
func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
