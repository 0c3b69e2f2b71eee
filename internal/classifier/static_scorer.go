package classifier

import (
	"context"
	"fmt"
	"sync"
)

// StaticScorer is a deterministic Scorer that returns preset score vectors
// keyed by the exact image bytes. Unknown images fall back to Default, or
// fail when Default is nil.
type StaticScorer struct {
	mu      sync.Mutex
	scores  map[string]ImageScore
	errs    map[string]error
	Default ImageScore
	calls   int
}

// NewStaticScorer creates an empty StaticScorer
func NewStaticScorer() *StaticScorer {
	return &StaticScorer{
		scores: make(map[string]ImageScore),
		errs:   make(map[string]error),
	}
}

// Set registers the score returned for image
func (s *StaticScorer) Set(image []byte, score ImageScore) *StaticScorer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[string(image)] = score
	return s
}

// Fail registers an error returned for image
func (s *StaticScorer) Fail(image []byte, err error) *StaticScorer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[string(image)] = err
	return s
}

// Calls returns how many times Score was invoked
func (s *StaticScorer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Score implements Scorer
func (s *StaticScorer) Score(_ context.Context, image []byte, _ *Catalog) (ImageScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err, ok := s.errs[string(image)]; ok {
		return nil, err
	}
	if score, ok := s.scores[string(image)]; ok {
		return append(ImageScore(nil), score...), nil
	}
	if s.Default != nil {
		return append(ImageScore(nil), s.Default...), nil
	}
	return nil, fmt.Errorf("no score registered for %d-byte image", len(image))
}

// Uniform returns a score vector that puts mass p evenly on the valid
// categories of catalog and 1-p evenly on the rejectable ones.
func Uniform(catalog *Catalog, p float64) ImageScore {
	score := make(ImageScore, catalog.Len())
	if n := len(catalog.valid); n > 0 {
		for _, i := range catalog.valid {
			score[i] = p / float64(n)
		}
	}
	if n := len(catalog.rejectable); n > 0 {
		for _, i := range catalog.rejectable {
			score[i] = (1 - p) / float64(n)
		}
	}
	return score
}
