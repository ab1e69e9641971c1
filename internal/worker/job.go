package worker

import (
	"context"
	"errors"

	"audiofeedback/internal/models"
)

var (
	// ErrDispatcherBusy is returned when the job queue is full.
	ErrDispatcherBusy = errors.New("analysis queue is full")
	// ErrManagerClosed is returned for jobs submitted or pending after Close.
	ErrManagerClosed = errors.New("worker manager closed")
)

type JobType string

const (
	Analyze JobType = "analyze"
	Stop    JobType = "stop"
)

type Job struct {
	Type        JobType
	AnalyzeTask analysisTask
}

// AnalysisRequest describes one uploaded file waiting for analysis.
type AnalysisRequest struct {
	Context context.Context
	// ClientKey groups requests for fair scheduling, usually the client IP.
	ClientKey string
	Path      string
	// Digest is the hex sha256 of the file, used as the cache key.
	Digest string
}

type analysisTask struct {
	req      AnalysisRequest
	resultCh chan workerReturn
}

type workerReturn struct {
	features *models.Features
	err      error
}

func (job Job) clientKey() string {
	if job.Type == Analyze {
		return job.AnalyzeTask.req.ClientKey
	}
	return ""
}

// reject answers a job that will never reach a worker.
func (job Job) reject(err error) {
	if job.Type == Analyze && job.AnalyzeTask.resultCh != nil {
		select {
		case job.AnalyzeTask.resultCh <- workerReturn{err: err}:
		default:
		}
	}
}
