// Package queue holds the invoice processing queue. Tasks move through
// pending, processing and a terminal completed or failed state; every
// transition is fanned out to stream subscribers for live dashboards.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexandratechlab/invoicehub/internal/ids"
	"github.com/alexandratechlab/invoicehub/internal/stream"
)

var (
	ErrNotFound     = errors.New("queue: task not found")
	ErrInvalidInput = errors.New("queue: invalid input")
	// ErrInvalidTransition rejects status changes the lifecycle does
	// not allow, such as completing a task that never started.
	ErrInvalidTransition = errors.New("queue: invalid status transition")
)

// Task types accepted by the queue.
const (
	TaskOCR        = "ocr"
	TaskCategorize = "categorize"
	TaskExport     = "export"
	TaskEmailCheck = "email_check"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const defaultMaxAttempts = 3

// Task is a unit of background work tied to a client.
type Task struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"client_id"`
	OrganizationID  string         `json:"organization_id"`
	Type            string         `json:"task_type"`
	Status          string         `json:"status"`
	Priority        int            `json:"priority"`
	Attempts        int            `json:"attempts"`
	MaxAttempts     int            `json:"max_attempts"`
	FilePath        string         `json:"file_path,omitempty"`
	Source          string         `json:"source,omitempty"`
	SourceReference string         `json:"source_reference,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

func validTaskType(t string) bool {
	switch t {
	case TaskOCR, TaskCategorize, TaskExport, TaskEmailCheck:
		return true
	}
	return false
}

// Store persists queue tasks.
type Store interface {
	Enqueue(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	ListByClient(ctx context.Context, clientID string, limit int) ([]*Task, error)
	ListByOrganization(ctx context.Context, organizationID string, status string, limit int) ([]*Task, error)
	// NextPending claims the highest priority pending task, marking it
	// processing atomically so concurrent workers never double-claim.
	NextPending(ctx context.Context, at time.Time) (*Task, error)
	Update(ctx context.Context, task *Task) error
}

// Service drives the task lifecycle and publishes transitions.
type Service struct {
	store  Store
	events *stream.Stream
	now    func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the queue service. events may be nil when no
// subscriber surface is wired, for instance in batch tools.
func NewService(store Store, events *stream.Stream, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("queue: store is required")
	}
	s := &Service{store: store, events: events, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnqueueParams collects submission fields.
type EnqueueParams struct {
	ClientID        string
	OrganizationID  string
	Type            string
	Priority        int
	MaxAttempts     int
	FilePath        string
	Source          string
	SourceReference string
	Payload         map[string]any
}

// Enqueue submits a new pending task.
func (s *Service) Enqueue(ctx context.Context, p EnqueueParams) (*Task, error) {
	p.ClientID = strings.TrimSpace(p.ClientID)
	p.OrganizationID = strings.TrimSpace(p.OrganizationID)
	if p.ClientID == "" || p.OrganizationID == "" {
		return nil, fmt.Errorf("%w: client_id and organization_id are required", ErrInvalidInput)
	}
	if !validTaskType(p.Type) {
		return nil, fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, p.Type)
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}

	task := &Task{
		ID:              ids.New(),
		ClientID:        p.ClientID,
		OrganizationID:  p.OrganizationID,
		Type:            p.Type,
		Status:          StatusPending,
		Priority:        p.Priority,
		MaxAttempts:     p.MaxAttempts,
		FilePath:        p.FilePath,
		Source:          p.Source,
		SourceReference: p.SourceReference,
		Payload:         p.Payload,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.Enqueue(ctx, task); err != nil {
		return nil, err
	}
	s.publish(task)
	return task, nil
}

// Claim hands the next pending task to a worker, or nil when the queue
// is drained.
func (s *Service) Claim(ctx context.Context) (*Task, error) {
	task, err := s.store.NextPending(ctx, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s.publish(task)
	return task, nil
}

// Complete marks a processing task done and records its result.
func (s *Service) Complete(ctx context.Context, id string, result map[string]any) (*Task, error) {
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusProcessing {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, task.Status)
	}
	now := s.now().UTC()
	task.Status = StatusCompleted
	task.Result = result
	task.ErrorMessage = ""
	task.CompletedAt = &now
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	s.publish(task)
	return task, nil
}

// Fail records a failed attempt. Tasks with attempts left return to
// pending for a retry; exhausted tasks end up failed.
func (s *Service) Fail(ctx context.Context, id string, reason string) (*Task, error) {
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusProcessing {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, task.Status)
	}
	task.ErrorMessage = reason
	if task.Attempts >= task.MaxAttempts {
		now := s.now().UTC()
		task.Status = StatusFailed
		task.CompletedAt = &now
	} else {
		task.Status = StatusPending
		task.StartedAt = nil
	}
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	s.publish(task)
	return task, nil
}

// Get loads a task by id.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.store.Get(ctx, id)
}

// ListByClient returns a client's recent tasks.
func (s *Service) ListByClient(ctx context.Context, clientID string, limit int) ([]*Task, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByClient(ctx, clientID, limit)
}

// ListByOrganization returns an organization's tasks, optionally
// filtered by status.
func (s *Service) ListByOrganization(ctx context.Context, organizationID, status string, limit int) ([]*Task, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if status != "" {
		switch status {
		case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByOrganization(ctx, organizationID, status, limit)
}

// Events exposes the underlying stream for subscriber surfaces.
func (s *Service) Events() *stream.Stream {
	return s.events
}

func (s *Service) publish(task *Task) {
	if s.events == nil {
		return
	}
	s.events.Publish(stream.TaskEvent{
		TaskID:    task.ID,
		ClientID:  task.ClientID,
		TaskType:  task.Type,
		Status:    task.Status,
		Attempts:  task.Attempts,
		Error:     task.ErrorMessage,
		Timestamp: s.now().UTC(),
	})
}
