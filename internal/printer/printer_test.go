package printer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestBar(t *testing.T) {
	t.Run("empty at zero", func(t *testing.T) {
		require.Equal(t, "[░░░░░░░░░░]", Bar(0, 10))
	})

	t.Run("full at one", func(t *testing.T) {
		require.Equal(t, "[██████████]", Bar(1, 10))
	})

	t.Run("half filled", func(t *testing.T) {
		require.Equal(t, "[█████░░░░░]", Bar(0.5, 10))
	})

	t.Run("clamps out-of-range values", func(t *testing.T) {
		require.Equal(t, "[██████████]", Bar(2.5, 10))
		require.Equal(t, "[░░░░░░░░░░]", Bar(-1, 10))
	})
}

// Note: The Error function prints formatted output to stderr with colors.
// The error object returned only contains the title for Cobra's error
// handling. This is intentional to avoid duplicate output while providing
// rich formatted errors.
