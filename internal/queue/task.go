package queue

import "fmt"

type TaskType string

const (
	TaskTypeMemoryGeneration TaskType = "memory_generation"
)

// MemoryJob asks the worker to turn one user's day of conversations into a
// memory. Date uses model.DateLayout.
type MemoryJob struct {
	UserID  int64
	Date    string
	Attempt int

	// TraceParent is the W3C traceparent of the request that enqueued the
	// job, so the worker's spans land in the same trace.
	TraceParent string
}

func (j MemoryJob) String() string {
	return fmt.Sprintf("%s(user=%d, date=%s)", TaskTypeMemoryGeneration, j.UserID, j.Date)
}
