package tracing

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/spikerx/sim"
)

// A TraceWriter stores finished tasks.
type TraceWriter interface {
	Write(task Task) error
	Flush() error
}

// DBTracer stamps tasks with simulation time and hands finished tasks to a
// TraceWriter.
type DBTracer struct {
	timeTeller sim.TimeTeller
	writer     TraceWriter

	lock          sync.Mutex
	inflightTasks map[string]*Task
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(timeTeller sim.TimeTeller, writer TraceWriter) *DBTracer {
	return &DBTracer{
		timeTeller:    timeTeller,
		writer:        writer,
		inflightTasks: make(map[string]*Task),
	}
}

// StartTask records the task start time
func (t *DBTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.inflightTasks[task.ID] = &task
	t.lock.Unlock()
}

// StepTask records a step of the task.
func (t *DBTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	original, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	step := task.Steps[0]
	step.Time = t.timeTeller.CurrentTime()
	original.Steps = append(original.Steps, step)
}

// EndTask writes the task out.
func (t *DBTracer) EndTask(task Task) {
	t.lock.Lock()
	original, ok := t.inflightTasks[task.ID]
	delete(t.inflightTasks, task.ID)
	t.lock.Unlock()

	if !ok {
		return
	}

	original.EndTime = t.timeTeller.CurrentTime()
	if err := t.writer.Write(*original); err != nil {
		log.WithError(err).WithField("task", task.ID).Error("writing trace")
	}
}
