package common

// TaskStatus is a stage of the build pipeline.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusParsing    TaskStatus = "parsing"
	TaskStatusExtracting TaskStatus = "extracting"
	TaskStatusAligning   TaskStatus = "aligning"
	TaskStatusConfirming TaskStatus = "confirming"
	TaskStatusBuilding   TaskStatus = "building"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

var taskStatusOrder = map[TaskStatus]int{
	TaskStatusPending:    0,
	TaskStatusParsing:    1,
	TaskStatusExtracting: 2,
	TaskStatusAligning:   3,
	TaskStatusConfirming: 4,
	TaskStatusBuilding:   5,
	TaskStatusCompleted:  6,
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	if s == TaskStatusFailed {
		return true
	}
	_, ok := taskStatusOrder[s]
	return ok
}

// IsTerminal reports whether no further transition is allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether a task in status from may move to status to.
// Stages advance one at a time, failed is reachable from every non-terminal
// stage, and repeating the current stage is allowed so that progress and
// stage messages can be refreshed.
func CanTransition(from, to TaskStatus) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == TaskStatusFailed || from == to {
		return true
	}
	return taskStatusOrder[to] == taskStatusOrder[from]+1
}

// FileStatus is the processing state of an uploaded file.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
	FileStatusDeprecated FileStatus = "deprecated"
)
