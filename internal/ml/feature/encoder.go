// Package feature turns study history into the fixed-order numeric matrix
// the time-prediction model consumes.
package feature

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LabelEncoder maps categorical values to dense integer codes in first-seen
// order. Unknown values at transform time report ok=false.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder creates an empty encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{index: make(map[string]int)}
}

// NewLabelEncoderFromClasses restores an encoder from a persisted class list.
func NewLabelEncoderFromClasses(classes []string) *LabelEncoder {
	e := NewLabelEncoder()
	for _, c := range classes {
		e.add(c)
	}
	return e
}

func (e *LabelEncoder) add(value string) {
	if _, ok := e.index[value]; ok {
		return
	}
	e.index[value] = len(e.classes)
	e.classes = append(e.classes, value)
}

// Fit registers all values, assigning codes in first-seen order.
func (e *LabelEncoder) Fit(values []string) {
	for _, v := range values {
		e.add(v)
	}
}

// Transform returns the code for a value, with ok=false for unseen values.
func (e *LabelEncoder) Transform(value string) (int, bool) {
	code, ok := e.index[value]
	return code, ok
}

// Classes returns the encoded values in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Len returns the number of known classes.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}

// StandardScaler normalizes feature columns to zero mean and unit variance.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes means and standard deviations per column. Columns with
// zero or undefined spread scale by 1 so constant features pass through.
func FitScaler(x [][]float64) *StandardScaler {
	if len(x) == 0 {
		return &StandardScaler{}
	}
	cols := len(x[0])
	s := &StandardScaler{
		Mean: make([]float64, cols),
		Std:  make([]float64, cols),
	}

	col := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		std := stat.StdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Std[j] = std
	}
	return s
}

// Transform returns a scaled copy of the matrix.
func (s *StandardScaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out
}
