package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with cause",
			op:      "LinearRegression.Fit",
			kind:    "solve failed",
			err:     ErrSingularMatrix,
			wantMsg: "modelflow: LinearRegression.Fit: solve failed: singular matrix",
		},
		{
			name:    "without cause",
			op:      "QDA.Fit",
			kind:    "degenerate class",
			wantMsg: "modelflow: QDA.Fit: degenerate class",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			require.True(t, As(err, &modelErr))
			assert.Equal(t, tt.op, modelErr.Op)
			if tt.err != nil {
				assert.True(t, Is(err, tt.err))
			}
		})
	}
}

func TestWorkflowErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		target  interface{}
		wantMsg string
	}{
		{
			name:    "invalid proportion",
			err:     NewInvalidProportionError(1.5),
			target:  new(*InvalidProportionError),
			wantMsg: "modelflow: split proportion must be in (0, 1), got 1.5",
		},
		{
			name:    "empty partition",
			err:     NewEmptyPartitionError("testing", 3),
			target:  new(*EmptyPartitionError),
			wantMsg: "modelflow: testing partition is empty (dataset has 3 rows)",
		},
		{
			name:    "unseen level",
			err:     NewUnseenLevelError("species", "orca"),
			target:  new(*UnseenLevelError),
			wantMsg: `modelflow: column 'species': level "orca" was not present when the recipe was fit`,
		},
		{
			name:    "target mismatch",
			err:     NewModelTargetTypeMismatchError("logistic_reg", "mpg", "categorical", "numeric"),
			target:  new(*ModelTargetTypeMismatchError),
			wantMsg: "modelflow: logistic_reg expects a categorical outcome but column 'mpg' is numeric",
		},
		{
			name:    "insufficient data",
			err:     NewInsufficientDataError("LinearRegression.Fit", 2, 4),
			target:  new(*InsufficientDataError),
			wantMsg: "modelflow: LinearRegression.Fit: insufficient data, need at least 4 rows, got 2",
		},
		{
			name:    "unsupported mode",
			err:     NewUnsupportedPredictionModeError("nearest_neighbor", "pred_int"),
			target:  new(*UnsupportedPredictionModeError),
			wantMsg: `modelflow: nearest_neighbor does not support prediction mode "pred_int"`,
		},
		{
			name:    "grid",
			err:     NewGridError("penalty", "value is NaN"),
			target:  new(*GridError),
			wantMsg: "modelflow: malformed tuning grid: parameter 'penalty': value is NaN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, As(tt.err, tt.target))
		})
	}
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var target *UnseenLevelError
	err := NewUnseenLevelError("color", "teal")
	require.True(t, As(err, &target))

	logger.Error().EmbedObject(target).Msg("apply failed")
	out := buf.String()
	assert.Contains(t, out, `"column":"color"`)
	assert.Contains(t, out, `"level":"teal"`)
	assert.Contains(t, out, `"type":"UnseenLevelError"`)
}

func TestWarn(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewConvergenceWarning("ElasticNet", 100, ""))
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].Error(), "ElasticNet failed to converge after 100 iterations"))
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEvaluationConsumed, "last fit for %s", "wf-1")
	assert.True(t, Is(wrapped, ErrEvaluationConsumed))
	assert.Contains(t, wrapped.Error(), "last fit for wf-1")
}

func TestNumericalHelpers(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("op", []float64{1, 2}, 0))
	assert.Error(t, CheckScalar("op", 1/zero(), 3))
	assert.InDelta(t, 3.0, LogSumExp([]float64{3, -1000}), 1e-12)
	assert.Equal(t, 0.0, SafeDivide(1, 0))

	p := []float64{0, 0}
	Softmax(p)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, p, 1e-12)
}

func zero() float64 { return 0 }
