package service

import (
	"testing"

	"github.com/avelar/docindex/internal/domain"
)

// Phase and status are separate enumerations with separate tables; a
// running job reports by phase, everything else by status.
func TestProgressPercent(t *testing.T) {
	testCases := []struct {
		name   string
		status domain.JobStatus
		phase  domain.Phase
		want   int
	}{
		{name: "queued ignores phase", status: domain.JobStatusQueued, phase: domain.PhaseEmbed, want: 0},
		{name: "running convert", status: domain.JobStatusRunning, phase: domain.PhaseConvert, want: 15},
		{name: "running ocr", status: domain.JobStatusRunning, phase: domain.PhaseOCR, want: 35},
		{name: "running chunk", status: domain.JobStatusRunning, phase: domain.PhaseChunk, want: 55},
		{name: "running embed", status: domain.JobStatusRunning, phase: domain.PhaseEmbed, want: 75},
		{name: "running integrate", status: domain.JobStatusRunning, phase: domain.PhaseIntegrate, want: 90},
		{name: "running ready", status: domain.JobStatusRunning, phase: domain.PhaseReady, want: 100},
		{name: "completed", status: domain.JobStatusCompleted, phase: domain.PhaseReady, want: 100},
		{name: "failed resets", status: domain.JobStatusFailed, phase: domain.PhaseIntegrate, want: 0},
		{name: "cancelled resets", status: domain.JobStatusCancelled, phase: domain.PhaseChunk, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ProgressPercent(tc.status, tc.phase); got != tc.want {
				t.Errorf("ProgressPercent(%s, %s) = %d, want %d", tc.status, tc.phase, got, tc.want)
			}
		})
	}
}
