package render

import (
	"errors"
	"fmt"
)

// ErrNavigationTimeout marks a navigation whose wait policy was not satisfied
// within the timeout. The Renderer recovers from it and never surfaces it.
var ErrNavigationTimeout = errors.New("navigation timeout")

// NavigationError reports a failed navigation attempt.
type NavigationError struct {
	URL    string
	Policy WaitPolicy
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s (wait %s): %v", e.URL, e.Policy, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the attempt ran out of time.
func (e *NavigationError) Timeout() bool {
	return errors.Is(e.Err, ErrNavigationTimeout)
}

func navTimeout(rawURL string, policy WaitPolicy) error {
	return &NavigationError{URL: rawURL, Policy: policy, Err: ErrNavigationTimeout}
}

func navFailure(rawURL string, policy WaitPolicy, err error) error {
	return &NavigationError{URL: rawURL, Policy: policy, Err: err}
}
