package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/gpr/core/gp"
	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

// KernelSpec describes one kernel, possibly composite.
type KernelSpec struct {
	Type        string       `yaml:"type"`
	Variance    float64      `yaml:"variance"`
	Lengthscale float64      `yaml:"lengthscale"`
	Children    []KernelSpec `yaml:"children"`
}

// LikelihoodSpec describes the observation noise model.
type LikelihoodSpec struct {
	Type      string    `yaml:"type"`
	Variance  float64   `yaml:"variance"`
	Variances []float64 `yaml:"variances"`
}

// OptimizeSpec controls hyperparameter optimization during fit.
type OptimizeSpec struct {
	Enabled       bool `yaml:"enabled"`
	MaxIterations int  `yaml:"max_iterations"`
}

// ModelSpec is the YAML model description consumed by every subcommand.
type ModelSpec struct {
	Kernel     KernelSpec     `yaml:"kernel"`
	Likelihood LikelihoodSpec `yaml:"likelihood"`
	Optimize   OptimizeSpec   `yaml:"optimize"`
	Seed       int64          `yaml:"seed"`
	Quantiles  []float64      `yaml:"quantiles"`
}

// LoadModelSpec reads and validates a YAML model spec file.
func LoadModelSpec(path string) (*ModelSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model spec: %w", err)
	}
	return ParseModelSpec(raw)
}

// ParseModelSpec decodes a YAML model spec and applies defaults.
func ParseModelSpec(raw []byte) (*ModelSpec, error) {
	spec := &ModelSpec{}
	if err := yaml.Unmarshal(raw, spec); err != nil {
		return nil, fmt.Errorf("parsing model spec: %w", err)
	}
	if spec.Kernel.Type == "" {
		spec.Kernel = KernelSpec{Type: "rbf", Variance: 1, Lengthscale: 1}
	}
	if spec.Likelihood.Type == "" {
		spec.Likelihood = LikelihoodSpec{Type: "gaussian", Variance: 0.1}
	}
	if spec.Optimize.MaxIterations == 0 {
		spec.Optimize.MaxIterations = gp.DefaultOptimizeConfig().MaxIterations
	}
	if _, err := BuildKernel(spec.Kernel); err != nil {
		return nil, err
	}
	if _, err := BuildLikelihood(spec.Likelihood); err != nil {
		return nil, err
	}
	return spec, nil
}

// BuildKernel constructs the kernel tree a spec describes.
func BuildKernel(spec KernelSpec) (kernels.Kernel, error) {
	variance := spec.Variance
	if variance == 0 {
		variance = 1
	}
	lengthscale := spec.Lengthscale
	if lengthscale == 0 {
		lengthscale = 1
	}

	switch spec.Type {
	case "rbf":
		return kernels.NewRBF(variance, lengthscale), nil
	case "matern32":
		return kernels.NewMatern32(variance, lengthscale), nil
	case "matern52":
		return kernels.NewMatern52(variance, lengthscale), nil
	case "linear":
		return kernels.NewLinear(variance), nil
	case "bias":
		return kernels.NewBias(variance), nil
	case "white":
		return kernels.NewWhite(variance), nil
	case "sum", "product":
		if len(spec.Children) < 2 {
			return nil, fmt.Errorf("kernel %q needs at least two children", spec.Type)
		}
		children := make([]kernels.Kernel, len(spec.Children))
		for i, c := range spec.Children {
			child, err := BuildKernel(c)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		if spec.Type == "sum" {
			return kernels.NewSum(children...), nil
		}
		return kernels.NewProduct(children...), nil
	default:
		return nil, fmt.Errorf("unknown kernel type %q", spec.Type)
	}
}

// BuildLikelihood constructs the likelihood a spec describes.
func BuildLikelihood(spec LikelihoodSpec) (likelihoods.Likelihood, error) {
	switch spec.Type {
	case "gaussian":
		variance := spec.Variance
		if variance == 0 {
			variance = 0.1
		}
		return likelihoods.NewGaussian(variance), nil
	case "mixed":
		if len(spec.Variances) == 0 {
			return nil, fmt.Errorf("mixed likelihood needs a variances list")
		}
		return likelihoods.NewMixedNoise(spec.Variances...), nil
	case "bernoulli":
		return likelihoods.NewBernoulli(), nil
	default:
		return nil, fmt.Errorf("unknown likelihood type %q", spec.Type)
	}
}

// LoadTrainingCSV reads a CSV where every column but the last holds an input
// dimension and the last column holds the target.
func LoadTrainingCSV(path string) (*mat.Dense, *mat.Dense, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	n := len(rows)
	d := len(rows[0]) - 1
	if d < 1 {
		return nil, nil, fmt.Errorf("%s: need at least one input column and one target column", path)
	}
	x := mat.NewDense(n, d, nil)
	y := mat.NewDense(n, 1, nil)
	for i, row := range rows {
		for j := 0; j < d; j++ {
			x.Set(i, j, row[j])
		}
		y.Set(i, 0, row[d])
	}
	return x, y, nil
}

// LoadPointsCSV reads a CSV of input points only.
func LoadPointsCSV(path string) (*mat.Dense, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	n := len(rows)
	d := len(rows[0])
	x := mat.NewDense(n, d, nil)
	for i, row := range rows {
		for j := 0; j < d; j++ {
			x.Set(i, j, row[j])
		}
	}
	return x, nil
}

func readCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	// A non-numeric first row is treated as a header.
	start := 0
	if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
		start = 1
	}
	if len(records) == start {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	width := len(records[start])
	rows := make([][]float64, 0, len(records)-start)
	for i, record := range records[start:] {
		if len(record) != width {
			return nil, fmt.Errorf("%s: row %d has %d columns, want %d", path, i+start+1, len(record), width)
		}
		row := make([]float64, width)
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %d: %w", path, i+start+1, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// buildModel assembles the GP model a spec describes over loaded data.
func buildModel(spec *ModelSpec, x, y *mat.Dense) (*gp.Model, error) {
	kern, err := BuildKernel(spec.Kernel)
	if err != nil {
		return nil, err
	}
	lik, err := BuildLikelihood(spec.Likelihood)
	if err != nil {
		return nil, err
	}
	return gp.New(x, y, kern, lik, gp.WithSeed(spec.Seed))
}
