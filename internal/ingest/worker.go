// Package ingest stores uploaded resumes and scans them for skill gaps in
// the background.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/careerpath/internal/roadmap"
	"github.com/kalambet/careerpath/internal/storage"
)

// JobGapScan is the job type processed by Worker.
const JobGapScan = "gap_scan"

// JobStore abstracts the job queue and resume operations.
// Implemented by storage.Store.
type JobStore interface {
	SaveResume(ctx context.Context, r storage.Resume) error
	GetResume(ctx context.Context, id string) (storage.Resume, error)
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id, resultJSON string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Scanner records skill gaps of a resume. Implemented by coach.Service.
type Scanner interface {
	ScanResume(sel roadmap.Selection, text string) ([]string, error)
}

type scanPayload struct {
	ResumeID  string            `json:"resume_id"`
	Selection roadmap.Selection `json:"selection"`
}

// ScanResult is the JSON result stored on a completed gap_scan job.
type ScanResult struct {
	Added []string `json:"added"`
}

// Submit stores the resume text and enqueues a gap_scan job for it.
// It returns the job id.
func Submit(ctx context.Context, store JobStore, filename, text string, sel roadmap.Selection) (string, error) {
	resume := storage.Resume{
		ID:        uuid.NewString(),
		Filename:  filename,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveResume(ctx, resume); err != nil {
		return "", fmt.Errorf("saving resume: %w", err)
	}

	payload, err := json.Marshal(scanPayload{ResumeID: resume.ID, Selection: sel})
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        JobGapScan,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(ctx, job); err != nil {
		return "", fmt.Errorf("enqueueing gap scan: %w", err)
	}
	return job.ID, nil
}

// Worker processes gap_scan jobs from the SQLite job queue.
type Worker struct {
	store   JobStore
	scanner Scanner
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, scanner Scanner, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		scanner: scanner,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single gap_scan job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobGapScan})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	result, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID, result); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("gap scan completed", "job_id", job.ID)
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload scanPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}
	sel, err := roadmap.ParseSelection(string(payload.Selection.Role), string(payload.Selection.Level), string(payload.Selection.Timeline))
	if err != nil {
		return "", fmt.Errorf("invalid selection: %w", err)
	}

	resume, err := w.store.GetResume(ctx, payload.ResumeID)
	if err != nil {
		return "", fmt.Errorf("loading resume %s: %w", payload.ResumeID, err)
	}

	added, err := w.scanner.ScanResume(sel, resume.Content)
	if err != nil {
		return "", fmt.Errorf("scanning resume: %w", err)
	}
	if added == nil {
		added = []string{}
	}

	b, err := json.Marshal(ScanResult{Added: added})
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(b), nil
}
