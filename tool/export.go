package tool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/threadloop/threadloop/core"
)

// Fields that must be recorded before an export succeeds.
var exportRequiredFields = []string{"employee_name", "employee_id", "starter_kit"}

var exportOptionalFields = []string{"dietary_restrictions", "meeting_scheduled"}

type exportArgs struct {
	Summary string `json:"summary,omitempty" description:"Two or three concise bullet points summarizing the onboarding conversation."`
}

// NewExportDataTool returns a tool that exports the collected onboarding
// profile to a JSON file named after the thread. Export is refused while
// required fields are missing; the refusal names them so the model can go
// collect the rest. The summary is written by the model and stored in
// conversation_summary together with the export.
func NewExportDataTool(dir string) Tool {
	return NewFunctionToolFromStruct(
		"export_data",
		"Export the collected onboarding profile to a JSON file. Call this once all required fields have been recorded, with a short summary of the conversation.",
		exportArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			record := map[string]any{
				"thread_id": tc.ThreadID(),
			}

			var missing []string
			for _, name := range exportRequiredFields {
				v, ok := tc.GetField(name)
				if !ok || v == nil {
					missing = append(missing, name)
					continue
				}
				record[name] = v
			}
			if len(missing) > 0 {
				return map[string]any{
					"status":          "error",
					"message":         "Cannot export: missing required fields.",
					"missing_fields":  missing,
					"required_fields": exportRequiredFields,
				}, nil
			}

			for _, name := range exportOptionalFields {
				if v, ok := tc.GetField(name); ok {
					record[name] = v
				} else {
					record[name] = nil
				}
			}

			summary, _ := args["summary"].(string)
			if summary != "" {
				tc.SetField("conversation_summary", summary)
				record["conversation_summary"] = summary
			}
			record["exported_at"] = time.Now().UTC().Format(time.RFC3339)

			raw, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return nil, err
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create export directory: %w", err)
			}
			path := filepath.Join(dir, tc.ThreadID()+".json")
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				return map[string]any{
					"status":    "error",
					"message":   fmt.Sprintf("Failed to write export file: %v", err),
					"file_path": path,
				}, nil
			}

			return map[string]any{
				"status":    "success",
				"message":   "Onboarding data exported successfully.",
				"file_path": path,
				"summary":   summary,
			}, nil
		},
	)
}
