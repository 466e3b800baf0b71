package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

func TestReconcileTerminalCounts(t *testing.T) {
	tests := []struct {
		name        string
		job         importjob.ImportJob
		wantFailure int
	}{
		{
			name:        "fatal before any row accounting",
			job:         importjob.ImportJob{TotalRecords: 10},
			wantFailure: 10,
		},
		{
			name:        "fatal mid run keeps accumulated successes",
			job:         importjob.ImportJob{TotalRecords: 10, SuccessCount: 4, FailureCount: 1},
			wantFailure: 6,
		},
		{
			name:        "already consistent counts untouched",
			job:         importjob.ImportJob{TotalRecords: 5, SuccessCount: 3, FailureCount: 2},
			wantFailure: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconcileTerminalCounts(&tt.job)
			assert.Equal(t, tt.wantFailure, tt.job.FailureCount)
			assert.Equal(t, tt.job.TotalRecords, tt.job.SuccessCount+tt.job.FailureCount)
			assert.Equal(t, tt.job.TotalRecords, tt.job.ProcessedRecords)
		})
	}
}

func TestReconcileTerminalCounts_NoTotalYet(t *testing.T) {
	job := importjob.ImportJob{}
	reconcileTerminalCounts(&job)
	assert.Zero(t, job.FailureCount, "a job that never learned its total stays at zero counts")
}

func TestTerminalStatus(t *testing.T) {
	assert.Equal(t, importjob.StatusCompleted, terminalStatus(3, 0))
	assert.Equal(t, importjob.StatusFailed, terminalStatus(0, 3))
	assert.Equal(t, importjob.StatusPartial, terminalStatus(2, 1))
	assert.Equal(t, importjob.StatusCompleted, terminalStatus(0, 0), "empty file completes")
}
