package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]ProcessingStatus{
		"pending":   StatusPending,
		"active":    StatusRunning,
		"running":   StatusRunning,
		"completed": StatusCompleted,
		"failed":    StatusFailed,
		"cancelled": StatusCancelled,
		"":          StatusPending,
		"archived":  StatusPending,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseStatus(in), in)
	}
}
