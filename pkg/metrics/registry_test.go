package metrics

import "testing"

func TestQuantile_MedianOfOddCount(t *testing.T) {
	if got := quantile([]float64{1, 2, 3}, 0.5); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestQuantile_SingleSample(t *testing.T) {
	if got := quantile([]float64{7}, 0.25); got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
}

func TestSummarize_EmptyIsMissing(t *testing.T) {
	if v := summarize(nil); v.Exists {
		t.Fatalf("expected Missing, got %+v", v)
	}
}

func TestSummarize_NarrowsAsSamplesAgree(t *testing.T) {
	uniform := summarize([]float64{5, 5, 5, 5})
	scattered := summarize([]float64{1, 5, 9, 13})
	if uniform.ConfidenceScore() <= scattered.ConfidenceScore() {
		t.Fatalf("expected uniform samples to score higher confidence: uniform=%v scattered=%v",
			uniform.ConfidenceScore(), scattered.ConfidenceScore())
	}
}
