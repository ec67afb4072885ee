package importer

import (
	"encoding/csv"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseCSV tokenizes raw CSV text into a trimmed header row and data
// rows. Rows may have ragged widths; quoting follows RFC 4180 with
// stray quotes inside fields tolerated rather than failing the file.
// Trailing rows whose cells are all blank are dropped (spreadsheet
// exports often end with rows of bare commas).
func ParseCSV(text string) (headers []string, rows [][]string, err error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "importer: parse csv")
	}

	for len(records) > 0 && blankRow(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	headers = records[0]
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, records[1:], nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
