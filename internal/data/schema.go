// Package data provides the tabular data handling used by the fraud detection
// pipeline: a declarative column schema, an immutable columnar DataView, a
// delimited text loader/saver and the cached train/test split.
package data

import (
	"fmt"
	"strconv"
)

// Kind is the value type of a column.
type Kind int

const (
	Boolean Kind = iota // stored as 0/1
	Single              // 32-bit float, widened to float64 in memory
	Vector              // fixed-size float64 vector, stored as a gonum matrix
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "Boolean"
	case Single:
		return "Single"
	case Vector:
		return "Vector"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Well-known column names
const (
	LabelColumn          = "Label"
	AmountColumn         = "Amount"
	StratificationColumn = "StratificationColumn"
	FeaturesColumn       = "Features"
)

// NumAnonymizedFeatures is the number of PCA components V1..V28 in the dataset.
const NumAnonymizedFeatures = 28

// Column maps a named column to a field index of the text source.
type Column struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Index int    `json:"index"`
	Size  int    `json:"size,omitempty"` // vector columns only
}

// Schema is an ordered list of columns.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a column by name.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FeatureNames returns every scalar column except the label and the
// stratification column, in schema order.
func (s Schema) FeatureNames() []string {
	var names []string
	for _, c := range s {
		if c.Name == LabelColumn || c.Name == StratificationColumn || c.Kind == Vector {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

// maxIndex returns the highest text field index referenced by the schema.
func (s Schema) maxIndex() int {
	m := -1
	for _, c := range s {
		if c.Kind != Vector && c.Index > m {
			m = c.Index
		}
	}
	return m
}

// VName returns the name of the i-th anonymized feature (1-based).
func VName(i int) string {
	return "V" + strconv.Itoa(i)
}

// SourceColumns is the layout of the raw dataset
// (Time, V1..V28, Amount, Class). Time is not loaded; Class becomes Label.
func SourceColumns() Schema {
	return featureLayout(Column{Name: LabelColumn, Kind: Boolean, Index: 30}, false)
}

// SplitColumns is the layout of the cached train/test files: Label moved to
// field 0 and the StratificationColumn appended at field 30.
func SplitColumns() Schema {
	return featureLayout(Column{Name: LabelColumn, Kind: Boolean, Index: 0}, true)
}

func featureLayout(label Column, withStratification bool) Schema {
	s := make(Schema, 0, NumAnonymizedFeatures+3)
	s = append(s, label)
	for i := 1; i <= NumAnonymizedFeatures; i++ {
		s = append(s, Column{Name: VName(i), Kind: Single, Index: i})
	}
	s = append(s, Column{Name: AmountColumn, Kind: Single, Index: 29})
	if withStratification {
		s = append(s, Column{Name: StratificationColumn, Kind: Single, Index: 30})
	}
	return s
}
