package data

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// CSVOption configures ReadCSV.
type CSVOption func(*csvConfig)

type csvConfig struct {
	kinds   map[string]Kind
	missing []string
	comma   rune
}

// WithKinds declares column kinds up front. Undeclared columns are
// inferred: Numeric when every non-missing cell parses as a float,
// Categorical otherwise.
func WithKinds(kinds map[string]Kind) CSVOption {
	return func(c *csvConfig) { c.kinds = kinds }
}

// WithMissing sets the tokens read as missing (NaN in numeric columns).
// The default is "" and "NA".
func WithMissing(tokens ...string) CSVOption {
	return func(c *csvConfig) { c.missing = tokens }
}

// WithComma sets the field delimiter.
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) { c.comma = r }
}

// ReadCSVFile opens path and calls ReadCSV.
func ReadCSVFile(path string, opts ...CSVOption) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(f, opts...)
}

// ReadCSV reads a header row followed by records.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Frame, error) {
	cfg := csvConfig{missing: []string{"", "NA"}, comma: ','}
	for _, opt := range opts {
		opt(&cfg)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no header")
	}
	header, rows := records[0], records[1:]

	b := NewBuilder()
	for j, name := range header {
		name = strings.TrimSpace(name)
		cells := make([]string, len(rows))
		for i, rec := range rows {
			cells[i] = strings.TrimSpace(rec[j])
		}
		kind, declared := cfg.kinds[name]
		if !declared {
			kind = inferKind(cells, cfg.missing)
		}
		if kind == Categorical {
			b.Categorical(name, cells)
			continue
		}
		vals := make([]float64, len(cells))
		for i, cell := range cells {
			if isMissing(cell, cfg.missing) {
				vals[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewValueError("ReadCSV", "column "+name+" row "+strconv.Itoa(i+1)+": "+err.Error())
			}
			vals[i] = v
		}
		b.Numeric(name, vals)
	}
	return b.Build()
}

func inferKind(cells, missing []string) Kind {
	seen := false
	for _, cell := range cells {
		if isMissing(cell, missing) {
			continue
		}
		seen = true
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return Categorical
		}
	}
	if !seen {
		return Categorical
	}
	return Numeric
}

func isMissing(cell string, missing []string) bool {
	for _, m := range missing {
		if cell == m {
			return true
		}
	}
	return false
}
