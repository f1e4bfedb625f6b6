package watch

import (
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/larder/pkg/slot"
)

// ContextSummary is one row of FormatTable.
type ContextSummary struct {
	Name          string
	Notifications int
	Current       slot.Value
}

// FormatTable writes one row per context with its notification count and
// last known value (truncated). Returns the number of rows written.
func FormatTable(w io.Writer, origin string, contexts []ContextSummary) int {
	if len(contexts) == 0 {
		fmt.Fprintf(w, "No contexts on origin '%s'\n", origin)
		return 0
	}

	fmt.Fprintf(w, "Contexts on origin '%s':\n\n", origin)
	fmt.Fprintf(w, "%-10s %-6s %s\n", "CONTEXT", "NOTES", "VALUE")
	fmt.Fprintf(w, "%-10s %-6s %s\n", "----------", "------", strings.Repeat("-", 40))

	for _, c := range contexts {
		value := "(absent)"
		if !c.Current.IsAbsent() {
			value = formatValue(c.Current)
		}
		fmt.Fprintf(w, "%-10s %-6d %s\n", c.Name, c.Notifications, value)
	}

	return len(contexts)
}
