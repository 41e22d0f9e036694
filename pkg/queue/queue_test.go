package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertAsynqStatus(t *testing.T) {
	next := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	done := next.Add(time.Minute)

	cases := []struct {
		state    asynq.TaskState
		status   string
		progress float64
	}{
		{asynq.TaskStatePending, "pending", 0},
		{asynq.TaskStateScheduled, "pending", 0},
		{asynq.TaskStateActive, "running", 0.5},
		{asynq.TaskStateRetry, "running", 0},
		{asynq.TaskStateCompleted, "completed", 1},
		{asynq.TaskStateArchived, "failed", 0},
	}
	for _, c := range cases {
		info := &asynq.TaskInfo{
			ID:            "t-1",
			State:         c.state,
			NextProcessAt: next,
			CompletedAt:   done,
			LastErr:       "engine unavailable",
			LastFailedAt:  done,
		}
		got := convertAsynqStatus(info)
		assert.Equal(t, "t-1", got.TaskID)
		assert.Equal(t, c.status, got.Status, c.state.String())
		assert.Equal(t, c.progress, got.Progress, c.state.String())
	}

	archived := convertAsynqStatus(&asynq.TaskInfo{State: asynq.TaskStateArchived, LastErr: "boom"})
	assert.Equal(t, "boom", archived.Error)
}

func TestTaskPayloadWireFormat(t *testing.T) {
	task := &Task{
		ID:   "abc",
		Type: TaskTypeDocumentProcess,
		Payload: DocumentPayload{
			FileID:   "uploads/abc.pdf",
			Filename: "scan.pdf",
			Size:     1024,
			Type:     ".pdf",
		},
	}
	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded struct {
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "uploads/abc.pdf", decoded.Payload["fileId"])
	assert.Equal(t, "scan.pdf", decoded.Payload["filename"])
	assert.EqualValues(t, 1024, decoded.Payload["size"])
	assert.Equal(t, ".pdf", decoded.Payload["type"])
	assert.NotContains(t, decoded.Payload, "options")
}

func TestTaskValidate(t *testing.T) {
	var nilTask *Task
	assert.Error(t, nilTask.Validate())
	assert.Error(t, (&Task{}).Validate())
	assert.Error(t, (&Task{ID: "a"}).Validate())
	assert.Error(t, (&Task{ID: "a", Payload: DocumentPayload{FileID: "f"}}).Validate())
	assert.NoError(t, (&Task{ID: "a", Payload: DocumentPayload{FileID: "f", Type: ".png"}}).Validate())
}

func TestQueueFor(t *testing.T) {
	assert.Equal(t, "critical", queueFor(1))
	assert.Equal(t, "default", queueFor(2))
	assert.Equal(t, "low", queueFor(0))
}
