package testutil

import "testing"

// Given opens a scenario as a named subtest.
func Given(t *testing.T, precondition string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+precondition, fn)
}

// When names the action under test inside a Given.
func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+action, fn)
}

// Then names an expected outcome.
func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+outcome, fn)
}
