// Package queue is the client for the remote task-queue service. It models
// the task-creation request and classifies remote failures so callers can
// decide between retrying and giving up.
package queue

import "time"

// Artifact declares one file the worker uploads when the task finishes.
type Artifact struct {
	Type    string    `json:"type"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires"`
}

// Payload is the worker-facing part of a task request.
type Payload struct {
	Command    []string            `json:"command"`
	Env        map[string]string   `json:"env,omitempty"`
	Image      string              `json:"image"`
	Features   map[string]bool     `json:"features,omitempty"`
	Artifacts  map[string]Artifact `json:"artifacts,omitempty"`
	MaxRunTime int64               `json:"maxRunTime"`
}

// Metadata describes the task to humans browsing the queue.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Source      string `json:"source"`
}

// TaskRequest is one task-creation call. Dependencies holds remote task IDs
// and is filled in by the submitter once the IDs of all dependencies are
// known; everything else is fixed when the task graph is built.
type TaskRequest struct {
	TaskGroupID  string    `json:"taskGroupId"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Created      time.Time `json:"created"`
	Deadline     time.Time `json:"deadline"`
	Payload      Payload   `json:"payload"`
	Routes       []string  `json:"routes,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Metadata     Metadata  `json:"metadata"`
}
