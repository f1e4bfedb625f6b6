// Package watch formats slot notifications for the CLI and waits on them.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/larder/pkg/slot"
)

// OutputFormat selects how notifications are written.
type OutputFormat int

const (
	// OutputFormatDefault is human-readable output with timestamps
	OutputFormatDefault OutputFormat = iota
	// OutputFormatJSON is line-delimited JSON for programmatic processing
	OutputFormatJSON
)

// ParseOutputFormat maps a --output flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "default":
		return OutputFormatDefault, nil
	case "json":
		return OutputFormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown format: %s", s)
	}
}

// Notification is one store-changed delivery observed by the CLI.
type Notification struct {
	Seq   int
	Time  time.Time
	Key   string
	Value slot.Value
}

type notificationJSON struct {
	Seq         int             `json:"seq"`
	TimestampMs int64           `json:"timestamp_ms"`
	Key         string          `json:"key"`
	Absent      bool            `json:"absent"`
	Value       json.RawMessage `json:"value,omitempty"`
	Raw         *string         `json:"raw,omitempty"`
}

// WriteNotification writes n to w in the requested format.
// In JSON output a value that is itself valid JSON is embedded as-is;
// anything else is carried as a string in "raw".
func WriteNotification(w io.Writer, format OutputFormat, n Notification) error {
	if format == OutputFormatJSON {
		out := notificationJSON{
			Seq:         n.Seq,
			TimestampMs: n.Time.UnixMilli(),
			Key:         n.Key,
			Absent:      n.Value.IsAbsent(),
		}
		if !n.Value.IsAbsent() {
			if json.Valid(n.Value) {
				out.Value = json.RawMessage(n.Value)
			} else {
				raw := string(n.Value)
				out.Raw = &raw
			}
		}

		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write notification: %w", err)
		}
		return nil
	}

	var line string
	if n.Value.IsAbsent() {
		line = fmt.Sprintf("[%s] #%d %s cleared\n", n.Time.Format("15:04:05"), n.Seq, n.Key)
	} else {
		line = fmt.Sprintf("[%s] #%d %s = %s\n", n.Time.Format("15:04:05"), n.Seq, n.Key, formatValue(n.Value))
	}
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

const maxValueWidth = 120

func formatValue(v slot.Value) string {
	s := string(v)
	if len(s) == 0 {
		return `""`
	}
	if len(s) > maxValueWidth {
		return s[:maxValueWidth-3] + "..."
	}
	return s
}

// WaitForNotification waits for the next value on notifications.
// Returns an error if ctx ends, the timeout passes or the channel closes.
func WaitForNotification(ctx context.Context, notifications <-chan slot.Value, timeout time.Duration) (slot.Value, error) {
	timeoutCh := time.After(timeout)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case <-timeoutCh:
		return nil, fmt.Errorf("timeout waiting for store acknowledgement after %v", timeout)

	case v, ok := <-notifications:
		if !ok {
			return nil, fmt.Errorf("notification channel closed")
		}
		return v, nil
	}
}

// WaitForValue waits until want arrives on notifications, skipping any other
// value. Returns an error if ctx ends, the timeout passes or the channel
// closes first.
func WaitForValue(ctx context.Context, notifications <-chan slot.Value, want slot.Value, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			return fmt.Errorf("timeout waiting for store acknowledgement after %v", timeout)

		case v, ok := <-notifications:
			if !ok {
				return fmt.Errorf("notification channel closed")
			}
			if slot.Equal(v, want) {
				return nil
			}
		}
	}
}
