package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gcs/internal/api"
	"gcs/internal/attachments"
	"gcs/internal/format"
)

var (
	outputFormatter format.Formatter = format.JSONFormatter{}
	fieldsFormatter format.Formatter = format.FieldsFormatter{}
)

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeRecordList(records []api.Record) error {
	for _, record := range records {
		if err := writePlain("%s\n", formatRecordLine(record)); err != nil {
			return err
		}
	}
	return nil
}

func writeRecordDetail(record api.Record) error {
	lines := []string{fmt.Sprintf("id: %s", record.ID)}
	if record.Created > 0 {
		lines = append(lines, fmt.Sprintf("created: %s", formatMillis(record.Created)))
	}
	if record.Modified > 0 {
		lines = append(lines, fmt.Sprintf("modified: %s", formatMillis(record.Modified)))
	}
	if record.Author != "" {
		lines = append(lines, fmt.Sprintf("author: %s", record.Author))
	}
	if err := writePlain("%s\n", strings.Join(lines, "\n")); err != nil {
		return err
	}
	if len(record.Fields) == 0 {
		return nil
	}
	return fieldsFormatter.Write(os.Stdout, map[string]any{"fields": record.Fields})
}

// formatRecordLine renders the id and the sorted field names of a record.
func formatRecordLine(record api.Record) string {
	names := make([]string, 0, len(record.Fields))
	for name := range record.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	line := record.ID
	if record.Author != "" {
		line += " [" + record.Author + "]"
	}
	if len(names) > 0 {
		line += " - " + strings.Join(names, ", ")
	}
	return line
}

func writeSweepResult(result attachments.SweepResult) error {
	summary := fmt.Sprintf("orphans: %d, deleted: %d, failed: %d, reclaimed: %d bytes",
		result.CandidateCount, result.DeletedCount, result.FailedCount, result.ReclaimedBytes)
	if result.DryRun {
		summary = fmt.Sprintf("orphans: %d (dry run, nothing deleted)", result.CandidateCount)
	}
	if err := writePlain("%s\n", summary); err != nil {
		return err
	}
	for _, blob := range result.Orphans {
		if err := writePlain("  %s %s (%d bytes)\n", blob.ID, blob.Filename, blob.Length); err != nil {
			return err
		}
	}
	return nil
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
