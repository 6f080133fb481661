package tracing

import (
	"sync"
)

// StepCountTracer counts how many times each step is reached, and by how many
// distinct tasks.
type StepCountTracer struct {
	filter TaskFilter

	lock              sync.Mutex
	inflightTasks     map[string][]string
	stepNames         []string
	stepCount         map[string]uint64
	taskWithStepCount map[string]uint64
}

// NewStepCountTracer creates a new StepCountTracer. A nil filter accepts every
// task.
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	return &StepCountTracer{
		filter:            filter,
		inflightTasks:     make(map[string][]string),
		stepCount:         make(map[string]uint64),
		taskWithStepCount: make(map[string]uint64),
	}
}

// StepNames returns the step names in the order they are first seen.
func (t *StepCountTracer) StepNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.stepNames...)
}

// StepCount returns the number of times a step with the name is reached.
func (t *StepCountTracer) StepCount(stepName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stepCount[stepName]
}

// TaskCount returns the number of tasks that reached a step with the name at
// least once.
func (t *StepCountTracer) TaskCount(stepName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskWithStepCount[stepName]
}

// StartTask starts tracking a task.
func (t *StepCountTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = nil
	t.lock.Unlock()
}

// StepTask counts the step carried by the task.
func (t *StepCountTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	steps, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	what := task.Steps[0].What
	if _, seen := t.stepCount[what]; !seen {
		t.stepNames = append(t.stepNames, what)
	}
	t.stepCount[what]++

	for _, s := range steps {
		if s == what {
			return
		}
	}

	t.taskWithStepCount[what]++
	t.inflightTasks[task.ID] = append(steps, what)
}

// EndTask stops tracking the task.
func (t *StepCountTracer) EndTask(task Task) {
	t.lock.Lock()
	delete(t.inflightTasks, task.ID)
	t.lock.Unlock()
}
