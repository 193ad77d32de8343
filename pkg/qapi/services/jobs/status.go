package jobs

import (
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qrunner"
)

var remoteStatuses = map[qrunner.Status]models.JobStatus{
	qrunner.StatusPending:   models.JobStatusPending,
	qrunner.StatusRunning:   models.JobStatusRunning,
	qrunner.StatusStopped:   models.JobStatusStopped,
	qrunner.StatusSucceeded: models.JobStatusSucceeded,
	qrunner.StatusFailed:    models.JobStatusFailed,
}

// TranslateStatus maps a cluster status onto the gateway's vocabulary.
// Unrecognised values become JobStatusUnknown.
func TranslateStatus(status qrunner.Status) models.JobStatus {
	if s, ok := remoteStatuses[status]; ok {
		return s
	}
	return models.JobStatusUnknown
}
