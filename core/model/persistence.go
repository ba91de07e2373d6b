package model

import (
	"io"
	"os"

	"github.com/YuminosukeSato/modelflow/pkg/errors"
)

// SaveWeights writes w as indented JSON to path.
func SaveWeights(w *ModelWeights, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	return WriteWeights(w, f)
}

// LoadWeights reads and validates weights written by SaveWeights.
func LoadWeights(path string) (*ModelWeights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadWeights(f)
}

// WriteWeights writes w as indented JSON to dst.
func WriteWeights(w *ModelWeights, dst io.Writer) error {
	b, err := w.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode weights")
	}
	if _, err := dst.Write(append(b, '\n')); err != nil {
		return errors.Wrap(err, "write weights")
	}
	return nil
}

// ReadWeights decodes and validates weights from src.
func ReadWeights(src io.Reader) (*ModelWeights, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrap(err, "read weights")
	}
	w := &ModelWeights{}
	if err := w.FromJSON(b); err != nil {
		return nil, errors.Wrap(err, "decode weights")
	}
	if err := w.Validate(); err != nil {
		return nil, errors.NewValidationError("weights", err.Error(), w.ModelType)
	}
	return w, nil
}
