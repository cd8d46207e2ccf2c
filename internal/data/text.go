package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// TextLoader reads delimited text into a DataView using a fixed schema.
type TextLoader struct {
	Columns   Schema
	Separator rune
	HasHeader bool
}

// NewTextLoader creates a loader for the given columns.
func NewTextLoader(columns Schema, separator rune, hasHeader bool) *TextLoader {
	return &TextLoader{Columns: columns, Separator: separator, HasHeader: hasHeader}
}

// Load reads the file at path.
func (l *TextLoader) Load(path string) (*DataView, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	view, err := l.LoadReader(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("rows", view.Len()).
		Int("columns", len(l.Columns)).
		Msg("Text data loaded successfully")

	return view, nil
}

// LoadReader reads delimited text from r.
func (l *TextLoader) LoadReader(r io.Reader) (*DataView, error) {
	for _, c := range l.Columns {
		if c.Kind == Vector {
			return nil, fmt.Errorf("column %q: vector columns cannot be loaded from text", c.Name)
		}
	}

	reader := csv.NewReader(r)
	reader.Comma = l.separator()
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	values := make([][]float64, len(l.Columns))
	need := l.Columns.maxIndex() + 1
	rows := 0
	header := l.HasHeader

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		if header {
			header = false
			continue
		}

		line, _ := reader.FieldPos(0)
		if len(record) < need {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, need, len(record))
		}

		for i, c := range l.Columns {
			v, err := parseField(c.Kind, record[c.Index])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, c.Name, err)
			}
			values[i] = append(values[i], v)
		}
		rows++
	}

	view := NewDataView(rows)
	for i, c := range l.Columns {
		col := values[i]
		if col == nil {
			col = []float64{}
		}
		view.schema = append(view.schema, c)
		view.scalars[c.Name] = col
	}
	return view, nil
}

func (l *TextLoader) separator() rune {
	if l.Separator == 0 {
		return ','
	}
	return l.Separator
}

func parseField(kind Kind, field string) (float64, error) {
	field = strings.TrimSpace(field)
	switch kind {
	case Boolean:
		if field == "" {
			return 0, errors.New("empty boolean")
		}
		if b, err := strconv.ParseBool(field); err == nil {
			if b {
				return 1, nil
			}
			return 0, nil
		}
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid boolean %q", field)
		}
		if f != 0 {
			return 1, nil
		}
		return 0, nil
	case Single:
		if field == "" {
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", field)
		}
		return float64(float32(f)), nil
	default:
		return 0, fmt.Errorf("unsupported column kind %s", kind)
	}
}

// SaveAsText writes the scalar columns of view in schema order.
func SaveAsText(w io.Writer, view *DataView, separator rune, header bool) error {
	var cols []Column
	for _, c := range view.schema {
		if c.Kind != Vector {
			cols = append(cols, c)
		}
	}

	writer := csv.NewWriter(w)
	if separator != 0 {
		writer.Comma = separator
	}

	record := make([]string, len(cols))
	if header {
		for i, c := range cols {
			record[i] = c.Name
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for r := 0; r < view.rows; r++ {
		for i, c := range cols {
			record[i] = formatField(c.Kind, view.scalars[c.Name][r])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveFile writes view to path, replacing any existing file.
func SaveFile(path string, view *DataView, separator rune, header bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create data file: %w", err)
	}
	if err := SaveAsText(file, view, separator, header); err != nil {
		file.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return file.Close()
}

func formatField(kind Kind, v float64) string {
	if kind == Boolean {
		return strconv.FormatBool(v != 0)
	}
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 32)
}
