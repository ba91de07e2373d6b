package workflow

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/linear"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/sklearn/discriminant_analysis"
	"github.com/YuminosukeSato/modelflow/sklearn/linear_model"
	"github.com/YuminosukeSato/modelflow/sklearn/naive_bayes"
	"github.com/YuminosukeSato/modelflow/sklearn/neighbors"
)

// Family is the model type of a ModelSpec.
type Family int

const (
	LinearReg Family = iota
	ElasticNet
	Logistic
	LDA
	QDA
	NaiveBayes
	KNN
)

var familyNames = map[Family]string{
	LinearReg:  "linear_reg",
	ElasticNet: "elastic_net",
	Logistic:   "logistic_reg",
	LDA:        "discrim_linear",
	QDA:        "discrim_quad",
	NaiveBayes: "naive_bayes",
	KNN:        "nearest_neighbor",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily accepts the names printed by Family.String.
func ParseFamily(s string) (Family, error) {
	for f, name := range familyNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, errors.NewValidationError("family", "unknown model family", s)
}

// Mode is regression or classification.
type Mode int

const (
	Regression Mode = iota
	Classification
)

func (m Mode) String() string {
	if m == Classification {
		return "classification"
	}
	return "regression"
}

// ParseMode accepts "regression" and "classification".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "regression":
		return Regression, nil
	case "classification":
		return Classification, nil
	}
	return 0, errors.NewValidationError("mode", "must be regression or classification", s)
}

// Parameter names understood by the model families.
const (
	ParamPenalty   = "penalty"
	ParamMixture   = "mixture"
	ParamNeighbors = "neighbors"
	ParamDistPower = "dist_power"
)

type familyInfo struct {
	modes    []Mode
	required []string
	optional []string
}

var families = map[Family]familyInfo{
	LinearReg:  {modes: []Mode{Regression}},
	ElasticNet: {modes: []Mode{Regression}, required: []string{ParamPenalty, ParamMixture}},
	Logistic:   {modes: []Mode{Classification}, optional: []string{ParamPenalty}},
	LDA:        {modes: []Mode{Classification}},
	QDA:        {modes: []Mode{Classification}},
	NaiveBayes: {modes: []Mode{Classification}},
	KNN:        {modes: []Mode{Regression, Classification}, required: []string{ParamNeighbors}, optional: []string{ParamDistPower}},
}

// Modes lists the modes f supports, the default first.
func (f Family) Modes() []Mode {
	return slices.Clone(families[f].modes)
}

// ModelSpec names a model family, its mode and its hyperparameters, any of
// which may be tuning markers. It holds no fitted state.
type ModelSpec struct {
	family Family
	mode   Mode
	params map[string]model.Param
}

// NewModelSpec validates the combination of family, mode and parameter
// names. Required parameters must be present; unknown names are rejected.
func NewModelSpec(family Family, mode Mode, params map[string]model.Param) (*ModelSpec, error) {
	info, ok := families[family]
	if !ok {
		return nil, errors.NewValidationError("family", "unknown model family", int(family))
	}
	if !slices.Contains(info.modes, mode) {
		return nil, errors.NewValidationError("mode",
			fmt.Sprintf("%s supports %v", family, lo.Map(info.modes, func(m Mode, _ int) string { return m.String() })),
			mode.String())
	}
	for _, name := range info.required {
		if _, ok := params[name]; !ok {
			return nil, errors.NewValidationError(name, fmt.Sprintf("required by %s", family), nil)
		}
	}
	allowed := slices.Concat(info.required, info.optional)
	for name, p := range params {
		if !slices.Contains(allowed, name) {
			return nil, errors.NewValidationError(name, fmt.Sprintf("not a parameter of %s", family), p.String())
		}
	}
	return &ModelSpec{family: family, mode: mode, params: cloneParams(params)}, nil
}

// LinearRegSpec is ordinary least squares.
func LinearRegSpec() *ModelSpec {
	return &ModelSpec{family: LinearReg, mode: Regression, params: map[string]model.Param{}}
}

// ElasticNetSpec is penalized least squares with penalty λ and mixture α
// (α=1 lasso, α=0 ridge).
func ElasticNetSpec(penalty, mixture model.Param) *ModelSpec {
	return &ModelSpec{family: ElasticNet, mode: Regression, params: map[string]model.Param{
		ParamPenalty: penalty,
		ParamMixture: mixture,
	}}
}

// LogisticSpec is binomial logistic regression with an optional L2 penalty.
func LogisticSpec(penalty ...model.Param) *ModelSpec {
	s := &ModelSpec{family: Logistic, mode: Classification, params: map[string]model.Param{}}
	if len(penalty) > 0 {
		s.params[ParamPenalty] = penalty[0]
	}
	return s
}

// LDASpec is linear discriminant analysis.
func LDASpec() *ModelSpec {
	return &ModelSpec{family: LDA, mode: Classification, params: map[string]model.Param{}}
}

// QDASpec is quadratic discriminant analysis.
func QDASpec() *ModelSpec {
	return &ModelSpec{family: QDA, mode: Classification, params: map[string]model.Param{}}
}

// NaiveBayesSpec is Gaussian naive Bayes.
func NaiveBayesSpec() *ModelSpec {
	return &ModelSpec{family: NaiveBayes, mode: Classification, params: map[string]model.Param{}}
}

// KNNSpec is k-nearest neighbors in either mode.
func KNNSpec(neighbors model.Param, mode Mode) *ModelSpec {
	return &ModelSpec{family: KNN, mode: mode, params: map[string]model.Param{ParamNeighbors: neighbors}}
}

func cloneParams(p map[string]model.Param) map[string]model.Param {
	out := make(map[string]model.Param, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Family returns the model family.
func (s *ModelSpec) Family() Family { return s.family }

// Mode returns the prediction mode.
func (s *ModelSpec) Mode() Mode { return s.mode }

// Params returns a copy of the parameter map.
func (s *ModelSpec) Params() map[string]model.Param { return cloneParams(s.params) }

// TunableParams lists the ids of the tuning markers, sorted.
func (s *ModelSpec) TunableParams() []string {
	var ids []string
	for name, p := range s.params {
		if p.IsTunable() {
			ids = append(ids, p.ID(name))
		}
	}
	slices.Sort(ids)
	return lo.Uniq(ids)
}

// Finalize returns a copy with every tuning marker replaced by its value.
func (s *ModelSpec) Finalize(values model.Values) (*ModelSpec, error) {
	out := &ModelSpec{family: s.family, mode: s.mode, params: make(map[string]model.Param, len(s.params))}
	for name, p := range s.params {
		r, err := p.Resolve(name, values)
		if err != nil {
			return nil, errors.NewValidationError(p.ID(name), "no value supplied for tuning parameter", nil)
		}
		out.params[name] = r
	}
	return out, nil
}

func (s *ModelSpec) String() string {
	names := lo.Keys(s.params)
	slices.Sort(names)
	args := lo.Map(names, func(n string, _ int) string { return n + "=" + s.params[n].String() })
	return fmt.Sprintf("%s(%s)", s.family, strings.Join(args, ", "))
}

func (s *ModelSpec) value(name string, def float64) float64 {
	if p, ok := s.params[name]; ok {
		return p.Value()
	}
	return def
}

// build constructs an unfitted estimator. Every parameter must be fixed.
func (s *ModelSpec) build() (model.Estimator, error) {
	if ids := s.TunableParams(); len(ids) > 0 {
		return nil, errors.NewValidationError("model", "unresolved tuning parameters; finalize first", ids)
	}
	switch s.family {
	case LinearReg:
		return linear.NewLinearRegression(), nil
	case ElasticNet:
		return linear.NewElasticNet(s.value(ParamPenalty, 0), s.value(ParamMixture, 1))
	case Logistic:
		lambda := s.value(ParamPenalty, 0)
		if lambda < 0 || math.IsNaN(lambda) {
			return nil, errors.NewValidationError(ParamPenalty, "must be non-negative", lambda)
		}
		return linear_model.NewLogisticRegression(linear_model.WithLRPenalty(lambda)), nil
	case LDA:
		return discriminant_analysis.NewLDA(), nil
	case QDA:
		return discriminant_analysis.NewQDA(), nil
	case NaiveBayes:
		return naive_bayes.NewGaussianNB(), nil
	case KNN:
		k := s.value(ParamNeighbors, 5)
		if math.IsNaN(k) || math.Round(k) < 1 {
			return nil, errors.NewValidationError(ParamNeighbors, "must be a positive integer", k)
		}
		opts := []neighbors.Option{neighbors.WithMinkowskiP(s.value(ParamDistPower, 2))}
		if s.mode == Classification {
			return neighbors.NewKNeighborsClassifier(int(math.Round(k)), opts...)
		}
		return neighbors.NewKNeighborsRegressor(int(math.Round(k)), opts...)
	}
	return nil, errors.NewValidationError("family", "unknown model family", int(s.family))
}
