package export

import "fmt"

// Column describes one exported field. Width is only used by the PDF
// renderer and is expressed in millimetres; zero means "share evenly".
type Column struct {
	Key   string
	Label string
	Width float64
}

// Table is the renderer-neutral content of an export.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     []map[string]string
	// Summary lines are printed after the table (totals, counters).
	Summary []string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	for _, col := range t.Columns {
		if col.Key == "" {
			return fmt.Errorf("export column without key")
		}
	}
	return nil
}

func (t Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Label
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}

func (t Table) record(row map[string]string) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = row[col.Key]
	}
	return out
}
