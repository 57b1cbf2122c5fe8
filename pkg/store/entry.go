package store

import (
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/table"
)

// Dataset is a stored table.
type Dataset struct {
	// Name is the dataset name without the key prefix.
	Name string `json:"-"`

	// Table holds the flattened studies.
	Table *table.Table `json:"table"`

	// SavedAt is when the dataset was written.
	SavedAt time.Time `json:"saved_at"`

	// Rows is the row count at save time.
	Rows int `json:"rows"`
}

// Summary is a dataset without its table.
type Summary struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
	Rows    int       `json:"rows"`
}

// Summary drops the table from d.
func (d *Dataset) Summary() Summary {
	return Summary{Name: d.Name, SavedAt: d.SavedAt, Rows: d.Rows}
}
