// Package modelflow is a train / validate / tune workflow library for Go.
//
// A typical run splits the data once, describes preprocessing as a
// recipe, resamples a grid of candidate hyperparameters, picks one with
// the best or one-standard-error rule and evaluates the finalized
// workflow exactly once on the held-out rows.
//
// # Quick Start
//
//	split, _ := data.InitialSplit(frame, 0.75, data.WithStrata("price"), data.WithSeed(1))
//
//	rec := preprocessing.NewRecipe(data.NewRoles("price", "rooms", "age", "district"),
//	    preprocessing.Dummy(preprocessing.AllNominalPredictors()),
//	    preprocessing.Normalize(preprocessing.AllNumericPredictors()),
//	)
//	wf := workflow.New(rec, workflow.ElasticNetSpec(model.Tune(), model.Fixed(1)))
//
//	grid, _ := tune.RegularGrid(tune.Range{Name: "penalty", Min: 1e-3, Max: 10, Levels: 20, Scale: tune.Log10})
//	res, _ := tune.Tune(wf, split.Training(), grid, tune.WithFolds(10))
//
//	values, _, _ := tune.SelectByOneStdErr(res, "rmse", tune.Desc("penalty"))
//	final, _ := tune.FinalizeWorkflow(wf, values)
//	last, _ := tune.LastFit(final, split)
//
// # Packages
//
//   - data: Frame, schema, CSV input, initial split and v-fold resampling
//   - preprocessing: recipe steps (normalize, dummy, log, poly, spline, ...)
//   - linear: OLS and elastic net
//   - sklearn/...: logistic regression, LDA / QDA, Gaussian naive Bayes, kNN
//   - workflow: model specs, recipe + model binding, prediction modes
//   - tune: grid and Bayesian tuning, selection rules, finalize, last fit
//   - metrics: regression and classification metric sets
//   - report: tables and plots
//   - config: experiment files for cmd/modelflow
//   - pkg/errors, pkg/log: typed errors and structured logging
package modelflow
