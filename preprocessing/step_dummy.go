package preprocessing

import (
	"slices"

	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// DefaultNovelLevel is the level name reserved by WithNovel("").
const DefaultNovelLevel = "new"

// DummyOption configures Dummy.
type DummyOption func(*dummyStep)

// WithOneHot emits one indicator per level instead of dropping the first
// (reference) level.
func WithOneHot() DummyOption {
	return func(s *dummyStep) { s.oneHot = true }
}

// WithNovel reserves a level for values not seen during Fit. Unseen values
// are then encoded as that level instead of failing with UnseenLevelError.
func WithNovel(level string) DummyOption {
	return func(s *dummyStep) {
		if level == "" {
			level = DefaultNovelLevel
		}
		s.novel = level
	}
}

type dummyStep struct {
	sel    Selector
	oneHot bool
	novel  string
}

// Dummy encodes categorical columns as 0/1 indicator columns named
// "<column>_<level>". The first level in sorted order is the reference and
// gets no column unless WithOneHot is set.
func Dummy(sel Selector, opts ...DummyOption) Step {
	s := &dummyStep{sel: sel}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *dummyStep) Name() string { return "dummy" }

type dummyEncoding struct {
	column string
	levels []string // accepted levels, novel last when enabled
	emit   []string // levels that get an indicator column
	names  []string
}

type fittedDummy struct {
	encodings []dummyEncoding
	novel     string
}

func (s *dummyStep) prep(st *prepState, train *data.Frame) (fittedStep, error) {
	fd := &fittedDummy{novel: s.novel}
	for _, col := range s.sel(train.Schema(), st.roles) {
		if !train.Schema().IsCategorical(col) {
			return nil, errors.NewValidationError(col, "dummy encoding needs a categorical column", col)
		}
		levels, err := train.Levels(col)
		if err != nil {
			return nil, err
		}
		if s.novel != "" && !slices.Contains(levels, s.novel) {
			levels = append(levels, s.novel)
		}
		emit := levels
		if !s.oneHot {
			if len(levels) < 2 {
				return nil, errors.NewInsufficientDataError("Dummy("+col+")", len(levels), 2)
			}
			emit = levels[1:]
		}
		enc := dummyEncoding{column: col, levels: levels, emit: emit}
		for _, lv := range emit {
			enc.names = append(enc.names, col+"_"+lv)
		}
		fd.encodings = append(fd.encodings, enc)
		st.replacePredictor(col, enc.names)
		st.expanded[col] = enc.names
	}
	return fd, nil
}

func (fd *fittedDummy) bake(f *data.Frame) (*data.Frame, error) {
	out := f
	for _, enc := range fd.encodings {
		if !f.Schema().Has(enc.column) {
			return nil, errors.NewValidationError(enc.column, "column missing from new data", enc.column)
		}
		values, err := f.Categorical(enc.column)
		if err != nil {
			return nil, err
		}
		index := make(map[string]int, len(enc.emit))
		for j, lv := range enc.emit {
			index[lv] = j
		}
		indicators := make([][]float64, len(enc.emit))
		for j := range indicators {
			indicators[j] = make([]float64, len(values))
		}
		for i, v := range values {
			if !slices.Contains(enc.levels, v) {
				if fd.novel == "" {
					return nil, errors.NewUnseenLevelError(enc.column, v)
				}
				v = fd.novel
			}
			if j, ok := index[v]; ok {
				indicators[j][i] = 1
			}
		}
		out = out.Drop(enc.column)
		for j, name := range enc.names {
			if out, err = out.WithNumeric(name, indicators[j]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
