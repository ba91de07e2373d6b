package main

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFiles writes a CSV of n rows and an experiment file using body,
// in which %[1]s is the CSV path and %[2]s the output directory.
func writeFiles(t *testing.T, n int, body string) (cfgPath, outDir string) {
	t.Helper()
	dir := t.TempDir()
	rng := rand.New(rand.NewPCG(11, 12))

	var b strings.Builder
	b.WriteString("x1,x2,x3,group,y,label\n")
	for i := 0; i < n; i++ {
		x1, x2, x3 := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		group := []string{"north", "south"}[i%2]
		y := 2 + 1.5*x1 - x2 + 0.5*rng.NormFloat64()
		label := "neg"
		if x1+x2+0.5*rng.NormFloat64() > 0 {
			label = "pos"
		}
		fmt.Fprintf(&b, "%.4f,%.4f,%.4f,%s,%.4f,%s\n", x1, x2, x3, group, y, label)
	}
	csvPath := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(b.String()), 0o600))

	outDir = filepath.Join(dir, "out")
	cfgPath = filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(body, csvPath, outDir)), 0o600))
	return cfgPath, outDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

const lassoExperiment = `
data: {path: %[1]s}
roles: {outcome: y, predictors: [x1, x2, x3, group]}
split: {proportion: 0.75, seed: 1}
steps:
  - {type: dummy, select: all_nominal_predictors}
  - {type: normalize, select: all_numeric_predictors}
model:
  family: elastic_net
  params: {penalty: tune, mixture: 1}
tuning:
  folds: 5
  seed: 2
  ranges:
    - {name: penalty, min: 0.01, max: 100, levels: 5, scale: log10}
metrics: [rmse, rsq]
selection: {rule: one_se, order: [{param: penalty, desc: true}]}
output: {dir: %[2]s}
`

func TestRunRegression(t *testing.T) {
	cfgPath, outDir := writeFiles(t, 120, lassoExperiment)
	out, err := execute(t, "run", "--config", cfgPath, "--workers", "2", "--no-progress")
	require.NoError(t, err)

	assert.Contains(t, out, "Best candidates")
	assert.Contains(t, out, "Selected (one_se)")
	assert.Contains(t, out, "Evaluation")
	assert.Contains(t, out, "Coefficients")
	for _, name := range []string{"weights.json", "tuning_penalty.png", "residuals.png", "residual_hist.png", "coefficient_path.png"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
}

const knnExperiment = `
data:
  path: %[1]s
  columns: [{name: label, kind: categorical}]
roles: {outcome: label, predictors: [x1, x2]}
split: {proportion: 0.7, strata: label, seed: 3}
steps:
  - {type: normalize, select: all_numeric_predictors}
model:
  family: nearest_neighbor
  mode: classification
  params: {neighbors: tune}
tuning:
  method: bayes
  trials: 4
  folds: 3
  strata: label
  ranges:
    - {name: neighbors, min: 1, max: 25, levels: 1, integer: true}
metrics: [roc_auc, accuracy]
output: {dir: %[2]s, plots: false}
`

func TestRunBayesClassification(t *testing.T) {
	cfgPath, outDir := writeFiles(t, 150, knnExperiment)
	out, err := execute(t, "run", "-c", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Confusion matrix")
	assert.NotContains(t, out, "Coefficients")
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunErrors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfgPath, _ := writeFiles(t, 40, lassoExperiment)
	_, err = execute(t, "run", "--config", cfgPath, "--log-level", "loud")
	assert.Error(t, err)
}
