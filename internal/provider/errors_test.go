package provider

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryableByKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind ErrorKind
		want bool
	}{
		{KindCredential, false},
		{KindSafety, false},
		{KindRateLimit, true},
		{KindNetwork, true},
		{KindUnknown, true},
	}

	for _, c := range cases {
		err := NewError(c.kind, "test", nil)
		if got := err.Retryable(); got != c.want {
			t.Errorf("Retryable(%s) = %v, want %v", c.kind, got, c.want)
		}
		if got := IsRetryable(err); got != c.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestIsRetryableNonProviderError(t *testing.T) {
	t.Parallel()

	if IsRetryable(errors.New("something else")) {
		t.Error("plain errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestIsRetryableWrappedError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("submitting task: %w", NewError(KindRateLimit, "slow down", nil))
	if !IsRetryable(wrapped) {
		t.Error("wrapped provider errors should still classify")
	}
}

func TestSuggestedDelay(t *testing.T) {
	t.Parallel()

	fallback := 3 * time.Second

	withHint := NewError(KindRateLimit, "slow down", nil)
	withHint.RetryAfter = 10 * time.Second
	if got := SuggestedDelay(withHint, fallback); got != 10*time.Second {
		t.Errorf("SuggestedDelay with hint = %v, want 10s", got)
	}

	withoutHint := NewError(KindRateLimit, "slow down", nil)
	if got := SuggestedDelay(withoutHint, fallback); got != fallback {
		t.Errorf("SuggestedDelay without hint = %v, want fallback %v", got, fallback)
	}

	if got := SuggestedDelay(errors.New("plain"), fallback); got != fallback {
		t.Errorf("SuggestedDelay for plain error = %v, want fallback %v", got, fallback)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rate limit text", errors.New("429 Too Many Requests"), KindRateLimit},
		{"unauthorized", errors.New("401 unauthorized"), KindCredential},
		{"bad api key", errors.New("incorrect API key provided"), KindCredential},
		{"safety filter", errors.New("request blocked by content policy"), KindSafety},
		{"connection refused", errors.New("dial tcp: connection refused"), KindNetwork},
		{"timeout text", errors.New("request timeout exceeded"), KindNetwork},
		{"anything else", errors.New("model overloaded, please retry"), KindUnknown},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(c.err)
			if got.Kind != c.want {
				t.Errorf("Classify(%q).Kind = %s, want %s", c.err, got.Kind, c.want)
			}
			if !errors.Is(got, c.err) {
				t.Error("classification should wrap the original error")
			}
		})
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	t.Parallel()

	orig := NewError(KindSafety, "rejected", nil)
	if got := Classify(fmt.Errorf("call failed: %w", orig)); got != orig {
		t.Errorf("Classify rewrapped an already classified error: %v", got)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
