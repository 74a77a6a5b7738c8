// Package metrics exposes observability hooks for the store, scheduler and
// notification engine. The Prometheus implementation is wired by the daemon;
// tests and library callers use NoopRecorder.
package metrics

import "time"

// TaskOutcome enumerates scheduler task results.
type TaskOutcome string

const (
	TaskSuccess TaskOutcome = "success"
	TaskFailed  TaskOutcome = "failed"
	TaskSkipped TaskOutcome = "skipped"
)

// Recorder defines the metric hooks. Implementations must be safe for concurrent use.
type Recorder interface {
	IncStoreRead(resource, source string)
	IncStoreWriteFailure(resource string)
	ObserveTask(task string, d time.Duration, outcome TaskOutcome)
	IncNotifications(notificationType string, n int)
	SetNetworkOnline(online bool)
	SetOnlineTechnicians(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncStoreRead(string, string)                   {}
func (NoopRecorder) IncStoreWriteFailure(string)                   {}
func (NoopRecorder) ObserveTask(string, time.Duration, TaskOutcome) {}
func (NoopRecorder) IncNotifications(string, int)                  {}
func (NoopRecorder) SetNetworkOnline(bool)                         {}
func (NoopRecorder) SetOnlineTechnicians(int)                      {}
