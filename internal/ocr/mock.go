package ocr

import (
	"context"
	"sync"

	"github.com/feichai0017/document-extractor/internal/raster"
)

// Call records one Mock invocation.
type Call struct {
	Width    int
	Height   int
	Channels int
	Config   Config
}

// Response is one scripted Mock answer.
type Response struct {
	Text string
	Err  error
}

// Mock is a deterministic Recognizer for tests. Scripted responses are
// consumed in order; once exhausted, Text/Err are returned.
type Mock struct {
	mu        sync.Mutex
	Text      string
	Err       error
	responses []Response
	calls     []Call
	// TextFunc, when set, computes the text from the raster.
	TextFunc func(r *raster.Raster, cfg Config) (string, error)
}

// NewMock returns a Mock answering text to every call.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// Script queues responses for the next calls.
func (m *Mock) Script(responses ...Response) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
	return m
}

// Recognize implements Recognizer.
func (m *Mock) Recognize(ctx context.Context, r *raster.Raster, cfg Config) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	call := Call{Config: cfg}
	if r != nil {
		call.Width, call.Height, call.Channels = r.Width, r.Height, r.Channels
	}
	m.calls = append(m.calls, call)
	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		m.mu.Unlock()
		return resp.Text, resp.Err
	}
	fn, text, err := m.TextFunc, m.Text, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(r, cfg)
	}
	return text, err
}

// Calls returns a copy of the recorded invocations.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
