package service

import "github.com/avelar/docindex/internal/domain"

// phaseProgress maps the current pipeline phase of a running job to a
// coarse completion percentage.
var phaseProgress = map[domain.Phase]int{
	domain.PhaseConvert:   15,
	domain.PhaseOCR:       35,
	domain.PhaseChunk:     55,
	domain.PhaseEmbed:     75,
	domain.PhaseIntegrate: 90,
	domain.PhaseReady:     100,
}

// statusProgress maps a job status to a completion percentage. Phase
// and status are different enumerations and keep separate tables.
var statusProgress = map[domain.JobStatus]int{
	domain.JobStatusQueued:    0,
	domain.JobStatusRunning:   50,
	domain.JobStatusCompleted: 100,
	domain.JobStatusFailed:    0,
	domain.JobStatusCancelled: 0,
}

// ProgressPercent derives a 0-100 percentage for a job. Running jobs
// report by pipeline phase; every other status reports the flat value
// for that status.
func ProgressPercent(status domain.JobStatus, phase domain.Phase) int {
	if status == domain.JobStatusRunning {
		if pct, ok := phaseProgress[phase]; ok {
			return pct
		}
		return statusProgress[domain.JobStatusRunning]
	}
	return statusProgress[status]
}
