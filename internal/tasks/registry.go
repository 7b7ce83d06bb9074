// Package tasks tracks asynchronous analysis tasks and fans their
// transitions out to stream subscribers.
package tasks

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

// ErrInvalidTransition is returned when a task is moved to a state it cannot reach
var ErrInvalidTransition = errors.New("invalid task transition")

// subscriberBuffer holds every event a task can still emit after subscription
const subscriberBuffer = 4

// Registry holds tasks in memory. A listing has at most one unfinished task.
type Registry struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.AnalysisTask
	inFlight map[string]string
	subs     map[string][]chan domain.TaskEvent
	now      func() time.Time
	logger   logrus.FieldLogger
}

// NewRegistry creates an empty registry
func NewRegistry(logger logrus.FieldLogger) *Registry {
	return &Registry{
		tasks:    make(map[string]*domain.AnalysisTask),
		inFlight: make(map[string]string),
		subs:     make(map[string][]chan domain.TaskEvent),
		now:      time.Now,
		logger:   logging.Component(logger, "tasks"),
	}
}

// Create registers a new task for listingKey, or returns the unfinished task
// already registered for it. created is false when an existing task is reused.
func (r *Registry) Create(listingKey string, product domain.ProductInfo) (task domain.AnalysisTask, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.inFlight[listingKey]; ok {
		if t, ok := r.tasks[id]; ok && !t.Status.Terminal() {
			return *t, false
		}
	}

	now := r.now()
	t := &domain.AnalysisTask{
		ID:         uuid.NewString(),
		ListingKey: listingKey,
		Product:    product,
		Status:     domain.TaskNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.tasks[t.ID] = t
	r.inFlight[listingKey] = t.ID

	r.logger.WithFields(logrus.Fields{"task_id": t.ID, "listing": listingKey}).Info("Task created")
	return *t, true
}

// Get returns a snapshot of the task
func (r *Registry) Get(id string) (domain.AnalysisTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return domain.AnalysisTask{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return *t, nil
}

// Start moves a new task to processing
func (r *Registry) Start(id string) error {
	return r.transition(id, domain.TaskProcessing, nil, "")
}

// Complete marks the task done with its result
func (r *Registry) Complete(id string, result *domain.ProductPayload) error {
	return r.transition(id, domain.TaskDone, result, "")
}

// Fail marks the task as errored
func (r *Registry) Fail(id string, message string) error {
	return r.transition(id, domain.TaskError, nil, message)
}

func (r *Registry) transition(id string, to domain.TaskStatus, result *domain.ProductPayload, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if !allowed(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}

	t.Status = to
	t.Result = result
	t.Error = message
	t.UpdatedAt = r.now()

	if to.Terminal() && r.inFlight[t.ListingKey] == id {
		delete(r.inFlight, t.ListingKey)
	}

	event := eventFor(t)
	for _, ch := range r.subs[id] {
		ch <- event
		if to.Terminal() {
			close(ch)
		}
	}
	if to.Terminal() {
		delete(r.subs, id)
	}

	r.logger.WithFields(logrus.Fields{"task_id": id, "status": to}).Debug("Task transition")
	return nil
}

func allowed(from, to domain.TaskStatus) bool {
	switch from {
	case domain.TaskNew:
		return to == domain.TaskProcessing || to == domain.TaskError
	case domain.TaskProcessing:
		return to == domain.TaskDone || to == domain.TaskError
	}
	return false
}

// Subscribe returns a channel that first receives the task's current state and
// then every later transition. The channel is closed once the task is terminal.
// cancel must be called when the subscriber stops reading early.
func (r *Registry) Subscribe(id string) (<-chan domain.TaskEvent, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, func() {}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}

	ch := make(chan domain.TaskEvent, subscriberBuffer)
	ch <- eventFor(t)
	if t.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	r.subs[id] = append(r.subs[id], ch)

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.subs[id]
		for i, c := range subs {
			if c == ch {
				r.subs[id] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, cancel, nil
}

// Prune drops finished tasks last updated before cutoff and returns how many were removed
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.UpdatedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

func eventFor(t *domain.AnalysisTask) domain.TaskEvent {
	return domain.TaskEvent{
		TaskID: t.ID,
		Status: t.Status.Wire(),
		Data:   t.Result,
		Error:  t.Error,
	}
}
