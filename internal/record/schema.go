// Package record implements the value layer: column schemas and the
// record/cell byte formats that live inside B+-tree leaf cells.
package record

import "github.com/pkg/errors"

// DataType is a column's storage type.
type DataType int

const (
	TypeNull DataType = iota
	TypeInteger
	TypeReal
	TypeBool
	TypeText
)

// Column describes one column of a table schema.
type Column struct {
	Name      string
	Type      DataType
	IsPrimary bool
	NotNull   bool
}

// Schema is an ordered list of columns. Exactly one column must be an
// INTEGER PRIMARY KEY; it becomes the owning tree's key and is not
// itself stored in the record body (the cell already carries the key).
type Schema struct {
	Columns   []Column
	KeyColumn int // index into Columns of the INTEGER PRIMARY KEY
}

// NewSchema validates cols and locates the primary key column.
func NewSchema(cols []Column) (Schema, error) {
	keyIdx := -1
	for i, c := range cols {
		if c.IsPrimary {
			if keyIdx != -1 {
				return Schema{}, errors.New("record: schema has more than one primary key column")
			}
			if c.Type != TypeInteger {
				return Schema{}, errors.New("record: primary key column must be INTEGER")
			}
			keyIdx = i
		}
	}
	if keyIdx == -1 {
		return Schema{}, errors.New("record: schema must declare exactly one INTEGER PRIMARY KEY column")
	}
	return Schema{Columns: cols, KeyColumn: keyIdx}, nil
}

// NumCols is the number of columns stored in the record body, i.e. every
// column except the primary key (which is carried by the cell's key
// field instead).
func (s Schema) NumCols() int { return len(s.Columns) - 1 }

// BodyColumns returns the schema's columns in body (non-key) order.
func (s Schema) BodyColumns() []Column {
	out := make([]Column, 0, s.NumCols())
	for i, c := range s.Columns {
		if i == s.KeyColumn {
			continue
		}
		out = append(out, c)
	}
	return out
}
