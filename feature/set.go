package feature

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Labels is an ordered list of features whose positions line up with the fitted coefficients.
type Labels struct {
	idx    map[string]int
	labels []Feature
}

func NewLabels(labels []Feature) *Labels {
	idx := make(map[string]int, len(labels))
	for i, f := range labels {
		idx[f.String()] = i
	}
	return &Labels{idx: idx, labels: labels}
}

func (l *Labels) Len() int {
	if l == nil {
		return 0
	}
	return len(l.labels)
}

// Labels returns a copy of the ordered features.
func (l *Labels) Labels() []Feature {
	if l == nil {
		return nil
	}
	return slices.Clone(l.labels)
}

// Index returns the coefficient position of f.
func (l *Labels) Index(f Feature) (int, bool) {
	if l == nil {
		return -1, false
	}
	i, exists := l.idx[f.String()]
	if !exists {
		return -1, false
	}
	return i, true
}

// Set maps each feature to its column of observations. All columns share the same length.
type Set struct {
	m      int
	set    map[string][]float64
	labels map[string]Feature
}

func NewSet() *Set {
	return &Set{
		set:    make(map[string][]float64),
		labels: make(map[string]Feature),
	}
}

// Set stores the data for a feature, replacing any previous column with the same label.
func (s *Set) Set(f Feature, data []float64) *Set {
	if s.m == 0 {
		s.m = len(data)
	}
	s.set[f.String()] = data
	s.labels[f.String()] = f
	return s
}

// Get returns the column of the feature and whether it exists.
func (s *Set) Get(f Feature) ([]float64, bool) {
	data, exists := s.set[f.String()]
	return data, exists
}

// Update copies every column of other into s.
func (s *Set) Update(other *Set) *Set {
	if other == nil {
		return s
	}
	for label, data := range other.set {
		s.Set(other.labels[label], data)
	}
	return s
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.set)
}

// NumObservations returns the number of rows of every column.
func (s *Set) NumObservations() int {
	return s.m
}

// FilterByType returns a new set holding only the features of the given types.
func (s *Set) FilterByType(types ...FeatureType) *Set {
	res := NewSet()
	res.m = s.m
	for label, f := range s.labels {
		for _, ft := range types {
			if f.Type() == ft {
				res.Set(f, s.set[label])
				break
			}
		}
	}
	return res
}

// Labels returns the features sorted by their string representation.
func (s *Set) Labels() *Labels {
	if s == nil {
		return nil
	}

	labels := make([]Feature, 0, len(s.labels))
	for _, f := range s.labels {
		labels = append(labels, f)
	}
	slices.SortFunc(labels, func(a, b Feature) int {
		return strings.Compare(a.String(), b.String())
	})
	return NewLabels(labels)
}

// Matrix returns an m x n dense matrix of m observations and n features ordered by Labels.
// Returns nil if the set has no features.
func (s *Set) Matrix() *mat.Dense {
	if s.Len() == 0 || s.m == 0 {
		return nil
	}
	labels := s.Labels().Labels()
	n := len(labels)

	obs := make([]float64, s.m*n)
	for j, label := range labels {
		data := s.set[label.String()]
		for i := 0; i < s.m && i < len(data); i++ {
			obs[n*i+j] = data[i]
		}
	}
	return mat.NewDense(s.m, n, obs)
}
