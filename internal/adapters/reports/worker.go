package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuscore/internal/hierarchy"
	"campuscore/pkg/domain"
)

// Kind names a report layout.
type Kind string

const (
	KindActiveWork Kind = "active_work"
	KindCensus     Kind = "census"
)

// Valid reports whether k is a known layout.
func (k Kind) Valid() bool {
	return k == KindActiveWork || k == KindCensus
}

// JobStatus describes the lifecycle stage of an export job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Source supplies the data a report is rendered from.
type Source interface {
	// ActiveTickets returns tickets with refreshed display labels.
	ActiveTickets(ctx context.Context) ([]domain.Ticket, error)
	CensusData(ctx context.Context) ([]domain.Campus, []domain.Bathroom, error)
}

// Request selects a report. ScopeID restricts a census to one campus subtree.
type Request struct {
	Kind        Kind   `json:"kind"`
	ScopeID     string `json:"scope_id,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// Rendered is a report file ready to be stored or served.
type Rendered struct {
	Filename string
	Payload  []byte
}

// Render produces the CSV for req from src, stamping the filename with now.
func Render(ctx context.Context, src Source, req Request, now time.Time) (Rendered, error) {
	var buf bytes.Buffer
	switch req.Kind {
	case KindActiveWork:
		tickets, err := src.ActiveTickets(ctx)
		if err != nil {
			return Rendered{}, fmt.Errorf("load tickets: %w", err)
		}
		if err := WriteActiveWork(&buf, tickets); err != nil {
			return Rendered{}, err
		}
		return Rendered{Filename: ActiveWorkFilename(now), Payload: buf.Bytes()}, nil
	case KindCensus:
		campuses, bathrooms, err := src.CensusData(ctx)
		if err != nil {
			return Rendered{}, fmt.Errorf("load census data: %w", err)
		}
		forest := hierarchy.NewForest(campuses)
		if err := WriteCensus(&buf, forest, bathrooms, req.ScopeID); err != nil {
			return Rendered{}, err
		}
		site := ""
		if scope, ok := forest.Get(req.ScopeID); ok {
			site = scope.Name
		}
		return Rendered{Filename: CensusFilename(site, now), Payload: buf.Bytes()}, nil
	default:
		return Rendered{}, domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown report kind %q", req.Kind)}
	}
}

// Job tracks an export request and its stored artifact.
type Job struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	ScopeID     string     `json:"scope_id,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifact    *Artifact  `json:"artifact,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (j *Job) copy() Job {
	out := *j
	if j.Artifact != nil {
		a := copyArtifact(*j.Artifact)
		out.Artifact = &a
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// ErrQueueFull is returned when the worker cannot accept more jobs.
var ErrQueueFull = errors.New("export queue full")

// Worker renders reports asynchronously and stores them in an ObjectStore.
type Worker struct {
	source Source
	store  ObjectStore
	logger *slog.Logger
	now    func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs a worker with a bounded queue of queueSize jobs;
// non-positive sizes use 32.
func NewWorker(source Source, store ObjectStore, logger *slog.Logger, queueSize int) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if store == nil {
		store = NewMemoryObjectStore()
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		logger: logger.With("component", "reports"),
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan string, queueSize),
		jobs:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Store returns the artifact store jobs write to.
func (w *Worker) Store() ObjectStore { return w.store }

// Start begins processing queued jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the worker and waits for the running job, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue schedules an export and returns the queued job.
func (w *Worker) Enqueue(ctx context.Context, req Request) (Job, error) {
	if !req.Kind.Valid() {
		return Job{}, domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown report kind %q", req.Kind)}
	}
	if req.Kind == KindActiveWork && req.ScopeID != "" {
		return Job{}, domain.ValidationError{Field: "scope_id", Reason: "active work reports are not scoped"}
	}
	now := w.now()
	job := &Job{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		ScopeID:     req.ScopeID,
		RequestedBy: req.RequestedBy,
		Status:      JobQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[job.ID] = job
	snapshot := job.copy()
	w.mu.Unlock()

	select {
	case w.queue <- job.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, job.ID)
		w.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	w.audit(ctx, snapshot, "")
	return snapshot, nil
}

// Get returns a snapshot of job id.
func (w *Worker) Get(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.copy(), true
}

// Jobs returns snapshots of every known job, newest first.
func (w *Worker) Jobs() []Job {
	w.mu.RLock()
	out := make([]Job, 0, len(w.jobs))
	for _, job := range w.jobs {
		out = append(out, job.copy())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (w *Worker) process(id string) {
	job, ok := w.Get(id)
	if !ok {
		return
	}
	w.update(id, func(j *Job) { j.Status = JobRunning })

	rendered, err := Render(w.ctx, w.source, Request{Kind: job.Kind, ScopeID: job.ScopeID}, job.CreatedAt)
	if err != nil {
		w.fail(id, fmt.Sprintf("render %s: %v", job.Kind, err))
		return
	}
	key := fmt.Sprintf("%s/%s/%s", job.Kind, job.ID, rendered.Filename)
	metadata := map[string]string{"kind": string(job.Kind), "job": job.ID}
	if job.ScopeID != "" {
		metadata["scope"] = job.ScopeID
	}
	artifact, err := w.store.Put(w.ctx, key, rendered.Payload, ContentTypeCSV, metadata)
	if err != nil {
		w.fail(id, fmt.Sprintf("store artifact: %v", err))
		return
	}
	if artifact.ContentType == "" {
		artifact.ContentType = ContentTypeCSV
	}
	if artifact.SizeBytes == 0 {
		artifact.SizeBytes = int64(len(rendered.Payload))
	}
	w.update(id, func(j *Job) {
		j.Status = JobSucceeded
		j.Error = ""
		j.Artifact = &artifact
		done := j.UpdatedAt
		j.CompletedAt = &done
	})
}

func (w *Worker) fail(id, reason string) {
	w.update(id, func(j *Job) {
		j.Status = JobFailed
		j.Error = reason
		done := j.UpdatedAt
		j.CompletedAt = &done
	})
}

func (w *Worker) update(id string, mutate func(*Job)) {
	now := w.now()
	w.mu.Lock()
	job, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	job.UpdatedAt = now
	mutate(job)
	snapshot := job.copy()
	w.mu.Unlock()
	w.audit(w.ctx, snapshot, snapshot.Error)
}

func (w *Worker) audit(ctx context.Context, job Job, note string) {
	level := slog.LevelInfo
	if job.Status == JobFailed {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("action", "report_export"),
		slog.String("job", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("status", string(job.Status)),
	}
	if job.RequestedBy != "" {
		attrs = append(attrs, slog.String("actor", job.RequestedBy))
	}
	if job.ScopeID != "" {
		attrs = append(attrs, slog.String("scope", job.ScopeID))
	}
	if job.Artifact != nil {
		attrs = append(attrs, slog.String("artifact", job.Artifact.Key))
	}
	if note != "" {
		attrs = append(attrs, slog.String("note", note))
	}
	w.logger.LogAttrs(ctx, level, "report export", attrs...)
}
