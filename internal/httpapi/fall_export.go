package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"wisefido-care/internal/domain"
)

// FallEventsExportHeader 跌倒事件导出表头
var FallEventsExportHeader = []string{
	"Event ID",
	"Patient ID",
	"Reported At",
	"Source",
	"Notify Attempted",
	"Notify Delivered",
	"Notify Failed",
}

// GenerateFallEventsExport 生成跌倒事件历史 Excel 文件
// events 为空时只生成表头
func GenerateFallEventsExport(events []*domain.FallEvent) ([]byte, error) {
	f := excelize.NewFile()
	// 注意：这里不要 defer Close()，WriteTo 需要文件保持打开

	sheetName := "Fall Events"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	for col, header := range FallEventsExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, e := range events {
		values := []any{
			e.EventID,
			e.PatientID,
			e.ReportedAt.Format(time.RFC3339),
			e.Source,
			e.NotifyAttempted,
			e.NotifyDelivered,
			e.NotifyFailed,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize excel: %w", err)
	}
	_ = f.Close()
	return buf.Bytes(), nil
}
