package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/pkg/queue"
)

type fakeQueue struct {
	mu       sync.Mutex
	tasks    []*queue.Task
	statuses map[string]*queue.TaskStatus
	history  []string
	err      error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{statuses: make(map[string]*queue.TaskStatus)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	cp := *st
	return &cp, nil
}

func (q *fakeQueue) CancelTask(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.statuses[taskID]; !ok {
		return fmt.Errorf("%w: %s", queue.ErrTaskNotFound, taskID)
	}
	q.statuses[taskID].Status = "cancelled"
	return nil
}

func (q *fakeQueue) SaveFinalStatus(ctx context.Context, status *queue.TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *status
	q.statuses[status.TaskID] = &cp
	q.history = append(q.history, status.Status)
	return nil
}

func (q *fakeQueue) enqueued() []*queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*queue.Task(nil), q.tasks...)
}

type fakeHistory struct {
	mu      sync.Mutex
	records map[string]*models.HistoryRecord
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[string]*models.HistoryRecord)}
}

func (h *fakeHistory) Put(ctx context.Context, id string, ts time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[id]; ok {
		return fmt.Errorf("duplicate %s", id)
	}
	h.records[id] = &models.HistoryRecord{ID: id, Timestamp: ts}
	return nil
}

func (h *fakeHistory) MarkProcessed(ctx context.Context, id, format string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.records[id]
	if !ok {
		return fmt.Errorf("history record %w", models.ErrNotFound)
	}
	rec.Format, rec.Processed, rec.ProcessedAt = format, true, &at
	return nil
}

func (h *fakeHistory) Get(ctx context.Context, id string) (*models.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.records[id]
	if !ok {
		return nil, fmt.Errorf("history record %w", models.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (h *fakeHistory) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[id]; !ok {
		return fmt.Errorf("history record %w", models.ErrNotFound)
	}
	delete(h.records, id)
	return nil
}

func (h *fakeHistory) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func (q *fakeQueue) statusHistory() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.history...)
}
