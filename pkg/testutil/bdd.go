package testutil

import "testing"

// Given opens a scenario subtest. Together with When and Then it reads as a
// sentence in test output ("Given a registered claim/When a second account
// endorses it/Then ..."), with plain subtests underneath instead of a BDD
// framework.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

// When describes the action under test inside a Given block.
func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

// Then holds the assertions for the preceding When.
func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
