package analysis

import (
	"context"
	"sync"
)

// FixtureResponse is a canned analyzer response for the FixtureProvider.
type FixtureResponse struct {
	Report *RawReport
	Err    error
}

// FixtureProvider is a deterministic Provider for tests and local runs.
// It returns canned responses in FIFO order and records every request.
type FixtureProvider struct {
	mu        sync.Mutex
	responses []FixtureResponse
	calls     []Request
}

// NewFixtureProvider creates a FixtureProvider with the given responses.
func NewFixtureProvider(responses ...FixtureResponse) *FixtureProvider {
	return &FixtureProvider{responses: responses}
}

// Name identifies the provider variant.
func (f *FixtureProvider) Name() string { return "fixture" }

// Analyze returns the next canned response, or a transient failure when the
// queue is empty.
func (f *FixtureProvider) Analyze(_ context.Context, req Request) (*RawReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req)

	if len(f.responses) == 0 {
		return nil, NewError(KindTransient, "fixture provider has no responses left", nil)
	}

	next := f.responses[0]
	f.responses = f.responses[1:]

	if next.Err != nil {
		return nil, next.Err
	}
	return next.Report, nil
}

// AddResponse appends a canned response to the queue.
func (f *FixtureProvider) AddResponse(resp FixtureResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
}

// Calls returns a copy of the recorded requests.
func (f *FixtureProvider) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Analyze invocations.
func (f *FixtureProvider) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
