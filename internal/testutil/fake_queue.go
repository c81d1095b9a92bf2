package testutil

import (
	"context"
	"sync"

	"github.com/vk/buildsched/internal/queue"
)

// CreateCall records one task-creation request as seen by the fake queue.
type CreateCall struct {
	TaskID  string
	Request queue.TaskRequest
}

// FakeQueue is an in-memory queue.Client that records every creation call
// and injects failures on demand. Failures are keyed by the request's
// metadata name, which is stable per service and kind.
type FakeQueue struct {
	mu       sync.Mutex
	calls    []CreateCall
	attempts []CreateCall

	// failures maps metadata name to the error every call should return.
	failures map[string]error
	// transientLeft maps metadata name to how many leading calls should
	// fail with the mapped error before succeeding.
	transientLeft map[string]int
}

// NewFakeQueue creates an empty fake queue.
func NewFakeQueue() *FakeQueue {
	return &FakeQueue{
		failures:      make(map[string]error),
		transientLeft: make(map[string]int),
	}
}

// FailTask makes every creation of tasks with the given metadata name fail.
func (f *FakeQueue) FailTask(metadataName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[metadataName] = err
}

// FailTaskTimes makes the first n creations of tasks with the given
// metadata name fail, then succeed.
func (f *FakeQueue) FailTaskTimes(metadataName string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[metadataName] = err
	f.transientLeft[metadataName] = n
}

// CreateTask implements queue.Client.
func (f *FakeQueue) CreateTask(_ context.Context, taskID string, req queue.TaskRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts = append(f.attempts, CreateCall{TaskID: taskID, Request: req})

	name := req.Metadata.Name
	if err, ok := f.failures[name]; ok {
		if left, bounded := f.transientLeft[name]; bounded {
			if left > 0 {
				f.transientLeft[name] = left - 1
				return err
			}
		} else {
			return err
		}
	}

	f.calls = append(f.calls, CreateCall{TaskID: taskID, Request: req})
	return nil
}

// Attempts returns a copy of every creation call, successful or not.
func (f *FakeQueue) Attempts() []CreateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreateCall(nil), f.attempts...)
}

// Calls returns a copy of all successful creation calls, in order.
func (f *FakeQueue) Calls() []CreateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreateCall(nil), f.calls...)
}

// CallByName returns the successful creation call whose metadata name
// matches, or nil.
func (f *FakeQueue) CallByName(metadataName string) *CreateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.calls {
		if f.calls[i].Request.Metadata.Name == metadataName {
			return &f.calls[i]
		}
	}
	return nil
}
