package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"

	"github.com/YuminosukeSato/modelflow/config"
	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/data"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/pkg/log"
	"github.com/YuminosukeSato/modelflow/report"
	"github.com/YuminosukeSato/modelflow/tune"
	"github.com/YuminosukeSato/modelflow/workflow"
)

// runOptions are the command line overrides of one run.
type runOptions struct {
	workers  int
	progress bool
	stdout   io.Writer
	stderr   io.Writer
}

// runSummary is what a run produced.
type runSummary struct {
	RunID    string
	Selected model.Values
	Metrics  []tune.Estimate
	Files    []string
}

type runner struct {
	cfg     *config.Config
	opts    runOptions
	logger  log.Logger
	summary *runSummary
}

// runExperiment executes prepare → tune → select → finalize → last fit →
// report for cfg. The evaluation partition is only read by the last fit.
func runExperiment(cfg *config.Config, opts runOptions) (*runSummary, error) {
	start := time.Now()
	runID := uuid.NewString()
	r := &runner{
		cfg:     cfg,
		opts:    opts,
		logger:  log.GetLoggerWithName("modelflow").With(log.RunIDKey, runID),
		summary: &runSummary{RunID: runID},
	}
	r.logger.Info("run started", log.DataPathKey, cfg.Data.Path)

	frame, err := cfg.ReadData()
	if err != nil {
		return nil, err
	}
	split, err := cfg.InitialSplit(frame)
	if err != nil {
		return nil, err
	}
	r.logger.Info("data split",
		log.OperationKey, log.OperationSplit,
		log.SamplesKey, frame.NRows(),
		log.ProportionKey, split.Proportion(),
		log.StrataKey, cfg.Split.Strata,
	)

	wf, err := cfg.BuildWorkflow(frame.Schema())
	if err != nil {
		return nil, err
	}
	ms, err := cfg.BuildMetrics()
	if err != nil {
		return nil, err
	}

	if len(wf.TunableParams()) > 0 {
		if wf, err = r.tune(wf, split.Training(), ms); err != nil {
			return nil, err
		}
	}

	last, err := tune.LastFit(wf, split, ms...)
	if err != nil {
		return nil, err
	}
	r.summary.Metrics = last.Metrics
	if err := r.report(last, split.Training()); err != nil {
		return nil, err
	}

	r.logger.Info("run finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return r.summary, nil
}

func (r *runner) progressOption() tune.Option {
	var (
		once sync.Once
		bar  *progressbar.ProgressBar
	)
	return tune.WithProgress(func(done, total int) {
		once.Do(func() {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(r.opts.stderr),
				progressbar.OptionSetDescription("tuning"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		})
		_ = bar.Set(done)
		if done == total {
			_ = bar.Finish()
		}
	})
}

// tune resamples the candidates on train, prints the best ones and
// returns the finalized workflow.
func (r *runner) tune(wf *workflow.Workflow, train *data.Frame, ms []metrics.Metric) (*workflow.Workflow, error) {
	opts := r.cfg.TuneOptions(ms)
	opts = append(opts, tune.WithLogger(r.logger))
	if r.opts.workers > 0 {
		opts = append(opts, tune.WithWorkers(r.opts.workers))
	}
	if r.opts.progress {
		opts = append(opts, r.progressOption())
	}

	var res *tune.Result
	var err error
	if r.cfg.Tuning.Method == "bayes" {
		space, serr := r.cfg.BuildSpace()
		if serr != nil {
			return nil, serr
		}
		res, err = tune.TuneBayes(wf, train, space, r.cfg.Tuning.Trials, opts...)
	} else {
		grid, gerr := r.cfg.BuildGrid()
		if gerr != nil {
			return nil, gerr
		}
		res, err = tune.Tune(wf, train, grid, opts...)
	}
	if err != nil {
		return nil, err
	}

	best, err := tune.ShowBest(res, r.cfg.Selection.Metric, 10)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(r.opts.stdout, "Best candidates")
	if err := report.TuningTable(r.opts.stdout, best, res.Params); err != nil {
		return nil, err
	}

	values, chosen, err := r.cfg.Select(res)
	if err != nil {
		return nil, err
	}
	r.summary.Selected = values
	fmt.Fprintf(r.opts.stdout, "Selected (%s): %s  %s = %.5g ± %.3g\n",
		r.cfg.Selection.Rule, values, chosen.Metric, chosen.Mean, chosen.StdErr)

	if r.cfg.Output.Plots {
		for _, param := range res.Params {
			p, err := report.TuningPlot(res, r.cfg.Selection.Metric, param)
			if err != nil {
				return nil, err
			}
			if err := r.save(p, "tuning_"+param+".png"); err != nil {
				return nil, err
			}
		}
	}
	return tune.FinalizeWorkflow(wf, values)
}

func (r *runner) path(name string) string {
	return filepath.Join(r.cfg.Output.Dir, name)
}

// report prints the evaluation tables and writes plots and weights.
func (r *runner) report(last *tune.LastFitResult, train *data.Frame) error {
	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", r.cfg.Output.Dir)
	}
	out := r.opts.stdout
	fmt.Fprintln(out, "Evaluation")
	if err := report.MetricTable(out, last.Metrics); err != nil {
		return err
	}

	fitted := last.Fitted
	if coefs, err := fitted.Coefficients(); err == nil {
		fmt.Fprintln(out, "Coefficients")
		if err := report.CoefficientTable(out, coefs); err != nil {
			return err
		}
	}

	mode := fitted.Workflow().Spec().Mode()
	if mode == workflow.Classification {
		c, err := metrics.ConfusionMatrix(last.Truth.TruthClass, last.Truth.EstimateClass, last.Truth.Levels)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Confusion matrix")
		if err := report.ConfusionTable(out, c); err != nil {
			return err
		}
	}

	if w, err := fitted.ExportWeights(); err == nil {
		file := r.path("weights.json")
		if err := model.SaveWeights(w, file); err != nil {
			return err
		}
		r.summary.Files = append(r.summary.Files, file)
	}

	if !r.cfg.Output.Plots || mode != workflow.Regression {
		return nil
	}
	resid, err := report.ResidualPlot(last.Truth.Truth, last.Truth.Estimate)
	if err != nil {
		return err
	}
	if err := r.save(resid, "residuals.png"); err != nil {
		return err
	}
	residuals := make([]float64, len(last.Truth.Truth))
	floats.SubTo(residuals, last.Truth.Truth, last.Truth.Estimate)
	hist, err := report.Histogram(residuals, 20, "Evaluation residuals")
	if err != nil {
		return err
	}
	if err := r.save(hist, "residual_hist.png"); err != nil {
		return err
	}
	if fitted.Workflow().Spec().Family() == workflow.ElasticNet {
		return r.pathPlot(fitted, train)
	}
	return nil
}

// pathPlot draws the coefficient path over six decades around the
// fitted penalty.
func (r *runner) pathPlot(fitted *workflow.FittedWorkflow, train *data.Frame) error {
	penalty := fitted.Workflow().Spec().Params()[workflow.ParamPenalty].Value()
	if penalty <= 0 {
		penalty = 1
	}
	lambdas := floats.LogSpan(make([]float64, 40), penalty*1e-3, penalty*1e3)
	path, err := fitted.CoefficientPath(train, lambdas)
	if err != nil {
		return err
	}
	p, err := report.CoefficientPathPlot(path, fitted.Predictors())
	if err != nil {
		return err
	}
	return r.save(p, "coefficient_path.png")
}

func (r *runner) save(p *plot.Plot, name string) error {
	file := r.path(name)
	if err := report.Save(p, file); err != nil {
		return err
	}
	r.summary.Files = append(r.summary.Files, file)
	r.logger.Debug("plot written", log.FileKey, file)
	return nil
}
