// Package regression implements the ridge-regularized linear model behind
// task completion-time prediction.
package regression

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/studyloop/studyloop/internal/ml/feature"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

const (
	// DefaultLambda is the ridge regularization strength.
	DefaultLambda = 1.0

	// MinPredictionMinutes is the floor applied to every prediction. No
	// study task realistically takes less.
	MinPredictionMinutes = 5.0

	// SplitSeed makes train/validation splits reproducible across runs.
	SplitSeed = 42
)

// Metrics holds fit quality on the train and validation splits.
type Metrics struct {
	TrainMAE  float64 `json:"train_mae"`
	TrainR2   float64 `json:"train_r2"`
	ValMAE    float64 `json:"val_mae"`
	ValR2     float64 `json:"val_r2"`
	TrainRows int     `json:"train_rows"`
	ValRows   int     `json:"val_rows"`
}

// Ridge is a linear model with L2 regularization fit by normal equations.
// The intercept is not regularized. Fields are exported for persistence.
type Ridge struct {
	Lambda    float64                 `json:"lambda"`
	Weights   []float64               `json:"weights"`
	Intercept float64                 `json:"intercept"`
	Scaler    *feature.StandardScaler `json:"scaler"`
	Trained   bool                    `json:"trained"`
}

// NewRidge creates an untrained model with the default regularization.
func NewRidge() *Ridge {
	return &Ridge{Lambda: DefaultLambda}
}

// Train fits the model on a deterministic shuffled split and reports metrics
// for both partitions. validationSplit is the fraction held out; a split
// that rounds to zero rows trains on everything and reuses train metrics.
func (r *Ridge) Train(x [][]float64, y []float64, validationSplit float64) (Metrics, error) {
	if len(x) == 0 || len(x) != len(y) {
		return Metrics{}, fmt.Errorf("bad training shape (%d rows, %d targets): %w", len(x), len(y), domain.ErrInsufficientData)
	}

	perm := rand.New(rand.NewSource(SplitSeed)).Perm(len(x))
	nVal := int(math.Round(float64(len(x)) * validationSplit))
	if nVal >= len(x) {
		nVal = len(x) - 1
	}
	nTrain := len(x) - nVal

	trainX := make([][]float64, 0, nTrain)
	trainY := make([]float64, 0, nTrain)
	valX := make([][]float64, 0, nVal)
	valY := make([]float64, 0, nVal)
	for i, idx := range perm {
		if i < nTrain {
			trainX = append(trainX, x[idx])
			trainY = append(trainY, y[idx])
		} else {
			valX = append(valX, x[idx])
			valY = append(valY, y[idx])
		}
	}

	r.Scaler = feature.FitScaler(trainX)
	scaledTrain := r.Scaler.Transform(trainX)

	if err := r.fit(scaledTrain, trainY); err != nil {
		return Metrics{}, err
	}
	r.Trained = true

	metrics := Metrics{TrainRows: nTrain, ValRows: nVal}
	trainPred, err := r.Predict(trainX)
	if err != nil {
		return Metrics{}, err
	}
	metrics.TrainMAE = meanAbsoluteError(trainY, trainPred)
	metrics.TrainR2 = rSquared(trainY, trainPred)

	if nVal > 0 {
		valPred, err := r.Predict(valX)
		if err != nil {
			return Metrics{}, err
		}
		metrics.ValMAE = meanAbsoluteError(valY, valPred)
		metrics.ValR2 = rSquared(valY, valPred)
	} else {
		metrics.ValMAE = metrics.TrainMAE
		metrics.ValR2 = metrics.TrainR2
	}

	return metrics, nil
}

// fit solves (AᵀA + λI)β = Aᵀy over the scaled design matrix with an
// unregularized bias column.
func (r *Ridge) fit(x [][]float64, y []float64) error {
	n := len(x)
	p := len(x[0])

	a := mat.NewDense(n, p+1, nil)
	for i, row := range x {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	target := mat.NewVecDense(n, y)

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for j := 1; j <= p; j++ {
		ata.Set(j, j, ata.At(j, j)+r.Lambda)
	}

	var aty mat.VecDense
	aty.MulVec(a.T(), target)

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &aty); err != nil {
		return fmt.Errorf("solve normal equations: %w", err)
	}

	r.Intercept = beta.AtVec(0)
	r.Weights = make([]float64, p)
	for j := 0; j < p; j++ {
		r.Weights[j] = beta.AtVec(j + 1)
	}
	return nil
}

// Predict returns floored predictions for raw (unscaled) feature rows.
func (r *Ridge) Predict(x [][]float64) ([]float64, error) {
	if !r.Trained || r.Scaler == nil {
		return nil, domain.ErrNotTrained
	}

	scaled := r.Scaler.Transform(x)
	out := make([]float64, len(scaled))
	for i, row := range scaled {
		if len(row) != len(r.Weights) {
			return nil, fmt.Errorf("expected %d features, got %d", len(r.Weights), len(row))
		}
		pred := r.Intercept
		for j, v := range row {
			pred += r.Weights[j] * v
		}
		if pred < MinPredictionMinutes {
			pred = MinPredictionMinutes
		}
		out[i] = pred
	}
	return out, nil
}

// FeatureImportance ranks features by normalized absolute coefficient.
// Untrained models report an empty map.
func (r *Ridge) FeatureImportance() map[string]float64 {
	if !r.Trained || len(r.Weights) != len(feature.FeatureColumns) {
		return map[string]float64{}
	}

	total := 0.0
	for _, w := range r.Weights {
		total += math.Abs(w)
	}
	out := make(map[string]float64, len(r.Weights))
	for j, name := range feature.FeatureColumns {
		if total == 0 {
			out[name] = 0
			continue
		}
		out[name] = math.Abs(r.Weights[j]) / total
	}
	return out
}

func meanAbsoluteError(actual, predicted []float64) float64 {
	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// rSquared is the coefficient of determination. A constant target yields 0
// rather than a division by zero.
func rSquared(actual, predicted []float64) float64 {
	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	ssRes := 0.0
	ssTot := 0.0
	for i := range actual {
		ssRes += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
		ssTot += (actual[i] - mean) * (actual[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
