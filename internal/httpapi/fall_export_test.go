package httpapi

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wisefido-care/internal/domain"
)

func TestGenerateFallEventsExport(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	events := []*domain.FallEvent{
		{
			EventID:         "evt-1",
			PatientID:       "patient-1",
			ReportedAt:      now,
			Source:          domain.FallSourceManual,
			NotifyAttempted: 2,
			NotifyDelivered: 1,
			NotifyFailed:    1,
		},
		{
			EventID:    "evt-2",
			PatientID:  "patient-2",
			ReportedAt: now.Add(time.Hour),
			Source:     domain.FallSourceDevice,
		},
	}

	data, err := GenerateFallEventsExport(events)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Fall Events")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, FallEventsExportHeader, rows[0])
	assert.Equal(t, "evt-1", rows[1][0])
	assert.Equal(t, "manual", rows[1][3])
	assert.Equal(t, "evt-2", rows[2][0])
	assert.Equal(t, "device", rows[2][3])
}

func TestGenerateFallEventsExport_Empty(t *testing.T) {
	data, err := GenerateFallEventsExport(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Fall Events")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, FallEventsExportHeader, rows[0])
}
