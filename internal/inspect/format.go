// Package inspect formats saga instances, repository diagnostics and
// lifecycle events for the sagastore CLI.
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/dyluth/sagastore/pkg/saga/redisstore"
	"github.com/google/uuid"
)

// FormatSingleJSON writes v as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// FormatProbe writes repository diagnostics as aligned key/value lines.
func FormatProbe(w io.Writer, p saga.ProbeResult) {
	fmt.Fprintf(w, "%-22s %s\n", "Scope:", p.Scope)
	fmt.Fprintf(w, "%-22s %s\n", "Saga type:", p.SagaType)
	fmt.Fprintf(w, "%-22s %s\n", "Persistence:", p.Persistence)
	fmt.Fprintf(w, "%-22s %s\n", "Versioned:", formatBool(p.Versioned))
	fmt.Fprintf(w, "%-22s %s\n", "Atomic version check:", formatBool(p.AtomicVersionCheck))
}

// EventHeader writes the column header for FormatEvent rows.
func EventHeader(w io.Writer) {
	fmt.Fprintf(w, "%-9s %-10s %-12s %-5s %s\n", "EVENT", "ID", "SAGA", "VER", "AGE")
	fmt.Fprintf(w, "%-9s %-10s %-12s %-5s %s\n", "---------", "----------", "------------", "-----", "--------")
}

// FormatEvent writes a single lifecycle event as a table row.
func FormatEvent(w io.Writer, e *redisstore.Event) {
	fmt.Fprintf(w, "%-9s %-10s %-12s %-5s %s\n",
		e.Type,
		formatID(e.CorrelationID),
		formatType(e.SagaType),
		formatVersion(e.Version),
		formatTimestamp(e.AtMs),
	)
}

// FormatEventJSONL writes a single lifecycle event as one line of JSON,
// for piping into tools like jq.
func FormatEventJSONL(w io.Writer, e *redisstore.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// formatID truncates a correlation id to its first 8 characters.
func formatID(id uuid.UUID) string {
	return id.String()[:8]
}

func formatType(name string) string {
	if len(name) > 12 {
		return name[:9] + "..."
	}
	return name
}

// formatVersion shows "v1", "v2", etc. Unversioned instances report 0
// and show "-".
func formatVersion(version int) string {
	if version <= 0 {
		return "-"
	}
	return fmt.Sprintf("v%d", version)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatTimestamp formats Unix milliseconds as relative time like "2m ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
