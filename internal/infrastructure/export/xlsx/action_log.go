package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

const SheetName = "Actions"

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []string{
	"ID", "Created", "Module", "Action", "Automation", "Decision", "Decided By", "Decided",
	"Prompt", "Response", "Error", "Modified Content", "Tokens", "Latency (ms)", "Provider", "Model",
}

// WriteActionLog renders entries as a single-sheet workbook, one row per
// entry in the given order.
func WriteActionLog(w io.Writer, entries []domain.ActionLogEntry) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	stream, err := file.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}
	if err := stream.SetColWidth(9, 10, 60); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := stream.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	headerCells := make([]any, 0, len(header))
	for _, title := range header {
		headerCells = append(headerCells, excelize.Cell{StyleID: bold, Value: title})
	}
	if err := stream.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := stream.SetRow(cell, actionRow(entry)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := stream.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func actionRow(entry domain.ActionLogEntry) []any {
	var response, failure string
	if entry.Output != nil {
		response = entry.Output.Response
		failure = entry.Output.Error
	}
	return []any{
		entry.ID,
		formatTime(&entry.CreatedAt),
		entry.Module,
		entry.ActionType,
		string(entry.AutomationLevel),
		string(entry.HumanDecision),
		entry.DecidedBy,
		formatTime(entry.DecidedAt),
		entry.Input.Prompt,
		response,
		failure,
		entry.ModifiedContent,
		entry.TokensUsed,
		entry.LatencyMs,
		entry.Provider,
		entry.Model,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
