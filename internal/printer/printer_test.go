package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	var out, errOut bytes.Buffer
	restore := SetOutput(&out, &errOut)
	t.Cleanup(func() {
		restore()
		color.NoColor = prev
	})
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, errOut.String(), "This is a test error")
	})

	t.Run("prints single suggestion plainly", func(t *testing.T) {
		_, errOut := capture(t)
		Error("Test Error", "Explanation", []string{"Try this fix"})
		assert.Contains(t, errOut.String(), "Try this fix")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("numbers multiple suggestions", func(t *testing.T) {
		_, errOut := capture(t)
		Error("Test Error", "Explanation", []string{"First option", "Second option"})
		assert.Contains(t, errOut.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, errOut := capture(t)
	err := ErrorWithContext("Test Error", "Explanation", map[string]string{
		"Origin": "default",
		"Key":    "store",
	}, nil)

	require.Equal(t, "Test Error", err.Error())
	assert.Contains(t, errOut.String(), "  Key: store\n  Origin: default\n")
}

func TestMessages(t *testing.T) {
	out, _ := capture(t)

	Success("stored\n")
	Success("✓ already prefixed\n")
	Warning("careful\n")
	Step("working\n")
	Info("plain %d\n", 1)

	assert.Equal(t, "✓ stored\n✓ already prefixed\n⚠️  careful\n→ working\nplain 1\n", out.String())
}
