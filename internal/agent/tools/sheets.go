package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/fields"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

type sheetSettings struct {
	SpreadsheetTitle string `mapstructure:"spreadsheet_title"`
	WorksheetName    string `mapstructure:"worksheet_name"`
}

// Sheets appends the extracted record to a worksheet in store.
func Sheets(store *Store) Func {
	return func(ctx context.Context, in Input) model.ToolResult {
		fail := func(msg, errMsg string) model.ToolResult {
			return model.FailedResult(ImplSheets, msg, errMsg, in.Data)
		}

		if !fields.RequiredComplete(in.Data, in.Runtime.Fields) {
			missing := fields.Missing(in.Data, in.Runtime.Fields)
			return fail("Cannot execute tool: missing required data ("+strings.Join(missing, ", ")+")", "Incomplete data")
		}

		var s sheetSettings
		if err := decodeSettings(in.Runtime.Settings, &s); err != nil {
			return fail("Invalid sheet configuration", err.Error())
		}
		if strings.TrimSpace(s.SpreadsheetTitle) == "" {
			return fail("Missing spreadsheet_title in sheet configuration", "Missing spreadsheet_title")
		}
		if strings.TrimSpace(s.WorksheetName) == "" {
			return fail("Missing worksheet_name in sheet configuration", "Missing worksheet_name")
		}
		if store == nil {
			return fail("Sheet store is not configured", "Missing sheet store")
		}

		row, err := store.AppendRow(ctx, s.SpreadsheetTitle, s.WorksheetName, in.Data)
		if err != nil {
			res := fail("Failed to write to sheet: "+err.Error(), err.Error())
			res.Summary = fmt.Sprintf("Failed to write to spreadsheet '%s': %v", s.SpreadsheetTitle, err)
			return res
		}

		keys := nonEmptyKeys(in.Data)
		sample := "(no fields)"
		if len(keys) > 0 {
			shown := keys
			if len(shown) > 5 {
				shown = shown[:5]
			}
			sample = strings.Join(shown, ", ")
			if len(keys) > 5 {
				sample += ", ..."
			}
		}
		data := make(map[string]any, len(in.Data)+2)
		for k, v := range in.Data {
			data[k] = v
		}
		data["row_id"] = int(row.ID)
		data["sheet_info"] = map[string]any{"spreadsheet": s.SpreadsheetTitle, "worksheet": s.WorksheetName}

		return model.ToolResult{
			Success: true,
			Type:    ImplSheets,
			Message: "Successfully saved your information",
			Data:    data,
			Summary: fmt.Sprintf("Saved %d field(s) (%s) to spreadsheet '%s' (worksheet: '%s').",
				len(keys), sample, s.SpreadsheetTitle, s.WorksheetName),
		}
	}
}
