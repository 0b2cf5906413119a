package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/bookpress/internal/doctree"
)

// CSVParser handles CSV files. The whole file becomes one table whose
// first row is the header.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	o := newOutline(1)
	if len(records) > 0 {
		grid := &doctree.Table{Head: []doctree.Row{csvRow(records[0])}}
		for _, rec := range records[1:] {
			grid.Body = append(grid.Body, csvRow(rec))
		}
		o.add(&doctree.DocNode{
			Kind:       doctree.KindTable,
			Table:      grid,
			Attributes: doctree.Attributes{},
		})
	}
	return o.tree(baseName(filename)), nil
}

func csvRow(rec []string) doctree.Row {
	row := make(doctree.Row, len(rec))
	for i, v := range rec {
		row[i] = doctree.Cell{Inlines: []*doctree.DocNode{textNode(v)}}
	}
	return row
}
