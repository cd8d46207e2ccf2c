package data

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DataView is an immutable columnar table. Scalar columns hold one float64
// per row; vector columns hold a rows x size gonum matrix. Methods that add
// columns or select rows return a new view and never mutate the receiver.
type DataView struct {
	schema  Schema
	rows    int
	scalars map[string][]float64
	vectors map[string]*mat.Dense
}

// NewDataView creates an empty view with the given number of rows.
func NewDataView(rows int) *DataView {
	return &DataView{
		rows:    rows,
		scalars: make(map[string][]float64),
		vectors: make(map[string]*mat.Dense),
	}
}

// Len returns the number of rows.
func (v *DataView) Len() int {
	return v.rows
}

// Schema returns a copy of the view's columns.
func (v *DataView) Schema() Schema {
	out := make(Schema, len(v.schema))
	copy(out, v.schema)
	return out
}

// Scalar returns the values of a scalar column. The slice must not be modified.
func (v *DataView) Scalar(name string) ([]float64, error) {
	values, ok := v.scalars[name]
	if !ok {
		return nil, fmt.Errorf("scalar column %q not found", name)
	}
	return values, nil
}

// Vector returns the matrix of a vector column. The matrix must not be modified.
func (v *DataView) Vector(name string) (*mat.Dense, error) {
	m, ok := v.vectors[name]
	if !ok {
		return nil, fmt.Errorf("vector column %q not found", name)
	}
	return m, nil
}

// WithScalar returns a view with the column added, or replaced in place when
// a column with the same name already exists.
func (v *DataView) WithScalar(col Column, values []float64) (*DataView, error) {
	if col.Kind == Vector {
		return nil, fmt.Errorf("column %q: use WithVector for vector columns", col.Name)
	}
	if len(values) != v.rows {
		return nil, fmt.Errorf("column %q: expected %d values, got %d", col.Name, v.rows, len(values))
	}
	out := v.clone()
	out.setColumn(col)
	out.scalars[col.Name] = values
	return out, nil
}

// WithVector returns a view with a vector column added or replaced.
func (v *DataView) WithVector(name string, m *mat.Dense) (*DataView, error) {
	if m == nil {
		return nil, fmt.Errorf("column %q: nil matrix", name)
	}
	r, c := m.Dims()
	if r != v.rows {
		return nil, fmt.Errorf("column %q: expected %d rows, got %d", name, v.rows, r)
	}
	out := v.clone()
	out.setColumn(Column{Name: name, Kind: Vector, Index: -1, Size: c})
	out.vectors[name] = m
	return out, nil
}

// Select returns a view made of the given rows, in the given order.
// Vector columns are dropped when no rows are selected.
func (v *DataView) Select(rows []int) *DataView {
	out := NewDataView(len(rows))
	for _, col := range v.schema {
		if col.Kind == Vector {
			if len(rows) == 0 {
				continue
			}
			src := v.vectors[col.Name]
			_, c := src.Dims()
			dst := mat.NewDense(len(rows), c, nil)
			for i, r := range rows {
				dst.SetRow(i, src.RawRowView(r))
			}
			out.vectors[col.Name] = dst
		} else {
			src := v.scalars[col.Name]
			dst := make([]float64, len(rows))
			for i, r := range rows {
				dst[i] = src[r]
			}
			out.scalars[col.Name] = dst
		}
		out.schema = append(out.schema, col)
	}
	return out
}

// Where returns the rows whose value in column satisfies pred, in order.
func (v *DataView) Where(column string, pred func(float64) bool) (*DataView, error) {
	values, err := v.Scalar(column)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i, x := range values {
		if pred(x) {
			rows = append(rows, i)
		}
	}
	return v.Select(rows), nil
}

// Take returns the first n rows, or all of them when fewer exist.
func (v *DataView) Take(n int) *DataView {
	if n > v.rows {
		n = v.rows
	}
	if n < 0 {
		n = 0
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return v.Select(rows)
}

// Observations materializes every row as a TransactionObservation.
func (v *DataView) Observations() ([]TransactionObservation, error) {
	label, err := v.Scalar(LabelColumn)
	if err != nil {
		return nil, err
	}
	amount, err := v.Scalar(AmountColumn)
	if err != nil {
		return nil, err
	}
	features := make([][]float64, NumAnonymizedFeatures)
	for i := range features {
		if features[i], err = v.Scalar(VName(i + 1)); err != nil {
			return nil, err
		}
	}

	out := make([]TransactionObservation, v.rows)
	for r := 0; r < v.rows; r++ {
		obs := &out[r]
		obs.Label = label[r] != 0
		obs.Amount = float32(amount[r])
		for i := range features {
			obs.V[i] = float32(features[i][r])
		}
	}
	return out, nil
}

// FromObservations builds a view with the Label, V1..V28 and Amount columns.
func FromObservations(obs []TransactionObservation) *DataView {
	v := NewDataView(len(obs))
	label := make([]float64, len(obs))
	amount := make([]float64, len(obs))
	features := make([][]float64, NumAnonymizedFeatures)
	for i := range features {
		features[i] = make([]float64, len(obs))
	}
	for r, o := range obs {
		if o.Label {
			label[r] = 1
		}
		amount[r] = float64(o.Amount)
		for i := range features {
			features[i][r] = float64(o.V[i])
		}
	}

	v.schema = append(v.schema, Column{Name: LabelColumn, Kind: Boolean, Index: 0})
	v.scalars[LabelColumn] = label
	for i := range features {
		name := VName(i + 1)
		v.schema = append(v.schema, Column{Name: name, Kind: Single, Index: i + 1})
		v.scalars[name] = features[i]
	}
	v.schema = append(v.schema, Column{Name: AmountColumn, Kind: Single, Index: 29})
	v.scalars[AmountColumn] = amount
	return v
}

func (v *DataView) clone() *DataView {
	out := NewDataView(v.rows)
	out.schema = append(out.schema, v.schema...)
	for k, s := range v.scalars {
		out.scalars[k] = s
	}
	for k, m := range v.vectors {
		out.vectors[k] = m
	}
	return out
}

// setColumn replaces an existing column in place or appends a new one.
func (v *DataView) setColumn(col Column) {
	delete(v.scalars, col.Name)
	delete(v.vectors, col.Name)
	for i, c := range v.schema {
		if c.Name == col.Name {
			v.schema[i] = col
			return
		}
	}
	v.schema = append(v.schema, col)
}
