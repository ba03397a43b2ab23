package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"apertura/internal/models"
)

// ScheduleSource lists a tenant's appointments in a time window.
type ScheduleSource interface {
	ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]models.Appointment, error)
}

// Exporter writes a tenant's day schedule as an xlsx workbook for studio
// managers.
type Exporter struct {
	source ScheduleSource
	logger *zerolog.Logger
}

// NewExporter creates an exporter over the appointment store.
func NewExporter(source ScheduleSource, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

var scheduleColumns = []string{
	"ID", "Title", "Start", "End", "Status", "Slot", "Client", "Crew", "Notes",
}

// ExportDay writes the schedule for one calendar day to w.
func (e *Exporter) ExportDay(ctx context.Context, w io.Writer, tenantID string, day time.Time, loc *time.Location) error {
	local := day.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := e.source.ListBetween(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("load day schedule: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	sheet := dayStart.Format("2006-01-02")
	file.SetSheetName("Sheet1", sheet)

	if err := writeHeader(file, sheet, scheduleColumns); err != nil {
		return err
	}

	for i := range appts {
		if err := writeRow(file, sheet, i+2, appointmentRowValues(&appts[i], loc)); err != nil {
			return err
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Info().
		Str("tenant", tenantID).
		Str("day", sheet).
		Int("appointments", len(appts)).
		Msg("day schedule exported")
	return nil
}

func writeHeader(file *excelize.File, sheet string, columns []string) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	// Bold header row
	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = file.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, rowNum int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func appointmentRowValues(appt *models.Appointment, loc *time.Location) []interface{} {
	client := appt.ClientID
	if client == "" {
		client = appt.OTCName
	}

	crew := ""
	for i, c := range appt.Crew {
		if i > 0 {
			crew += ", "
		}
		crew += c.CrewMemberID
	}

	return []interface{}{
		appt.ID,
		appt.Title,
		appt.StartAt.In(loc).Format("15:04"),
		appt.EndAt.In(loc).Format("15:04"),
		appt.Status,
		appt.SlotType,
		client,
		crew,
		appt.Notes,
	}
}
