package textgen

import (
	"math/rand"
	"testing"
)

func newTestSampler(t *testing.T, opts ...ConfigOption) *Sampler {
	t.Helper()
	cfg, err := NewConfig(opts...)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	return NewSampler(cfg, rand.New(rand.NewSource(1)))
}

func TestSamplerGreedy(t *testing.T) {
	s := newTestSampler(t, WithStrategy(StrategyGreedy))

	got := s.Sample([]float32{0.1, 2.5, -1, 2.4}, nil)
	if got != 1 {
		t.Errorf("Expected argmax 1, got %d", got)
	}
}

func TestSamplerTopKOne(t *testing.T) {
	s := newTestSampler(t, WithTopK(1))

	for i := 0; i < 20; i++ {
		got := s.Sample([]float32{0, 1, 3, 2}, nil)
		if got != 2 {
			t.Fatalf("Expected top-1 sampling to pick 2, got %d", got)
		}
	}
}

func TestSamplerNeverPicksFilteredTokens(t *testing.T) {
	s := newTestSampler(t, WithTopK(2))

	for i := 0; i < 200; i++ {
		got := s.Sample([]float32{5, 5, -5, -5, -5}, nil)
		if got != 0 && got != 1 {
			t.Fatalf("Expected token 0 or 1, got %d", got)
		}
	}
}

func TestSamplerTopP(t *testing.T) {
	s := newTestSampler(t, WithTopK(0), WithTopP(0.5))

	// token 0 alone carries well over half the mass
	for i := 0; i < 50; i++ {
		got := s.Sample([]float32{4, 0, 0, 0}, nil)
		if got != 0 {
			t.Fatalf("Expected nucleus to contain only token 0, got %d", got)
		}
	}
}

func TestSamplerRepetitionPenalty(t *testing.T) {
	s := newTestSampler(t, WithStrategy(StrategyGreedy), WithRepetitionPenalty(2.0))

	// token 0 wins without the penalty, loses once it was already seen
	got := s.Sample([]float32{3, 2, 1}, []int{0})
	if got != 1 {
		t.Errorf("Expected penalized token to lose, got %d", got)
	}
}

func TestApplyRepetitionPenaltyNegative(t *testing.T) {
	logits := []float32{-2, 4}
	applyRepetitionPenalty(logits, []int{0, 1, 1, 42}, 2)

	if logits[0] != -4 {
		t.Errorf("Expected negative logit to be multiplied, got %f", logits[0])
	}
	if logits[1] != 2 {
		t.Errorf("Expected positive logit to be divided once, got %f", logits[1])
	}
}

func TestSampleMultinomialZeroMass(t *testing.T) {
	s := newTestSampler(t)

	got := s.sampleMultinomial([]float32{0, 0, 0})
	if got != 0 {
		t.Errorf("Expected fallback to argmax 0, got %d", got)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := softmax([]float32{1, 2, 3, 1000})

	sum := float32(0)
	for _, p := range probs {
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("Expected probabilities to sum to 1, got %f", sum)
	}
}
