// Package retry provides a bounded retry policy for transient failures.
//
// Failures are split into two categories: transient (worth another attempt)
// and permanent (configuration or data errors that retrying cannot fix).
// The classifier decides the category; permanent errors abort immediately.
package retry

import "github.com/pkg/errors"

// Classifier reports whether an error is worth retrying.
type Classifier func(err error) bool

// Policy describes a bounded retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Classify decides whether a failed attempt should be retried.
	// A nil classifier treats every error as retryable.
	Classify Classifier

	// OnRetry is called after each failed attempt that will be retried,
	// with the 1-based attempt number and its error.
	OnRetry func(attempt int, err error)
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or a
// non-retryable error occurs. It returns nil on success, the offending
// error otherwise. There is no delay between attempts.
func (p Policy) Do(fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Classify != nil && !p.Classify(err) {
			return err
		}
		if attempt < attempts && p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}
	return errors.Wrapf(err, "giving up after %d attempts", attempts)
}
