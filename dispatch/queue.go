// Package dispatch serializes the fetch and application of weight rows.
package dispatch

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/spikerx/sim"
)

// DefaultQueueDepth is the number of row requests a queue holds unless
// configured otherwise.
const DefaultQueueDepth = 256

// ErrOverflow is returned when a row request is enqueued on a full queue.
var ErrOverflow = errors.New("row queue overflow")

// A PendingRowRequest asks for one row to be fetched and applied.
type PendingRowRequest struct {
	RowIndex uint32

	// Key is the spike key the row was resolved from.
	Key uint32

	// ID names the request in traces. It is only assigned when the
	// dispatcher is traced.
	ID string
}

// A RowQueue is a fixed-capacity FIFO of row requests. Enqueue and Pop may
// run in different contexts.
type RowQueue struct {
	lock sync.Mutex
	buf  sim.Buffer[PendingRowRequest]
}

// NewRowQueue creates a queue holding up to capacity requests.
func NewRowQueue(name string, capacity int) *RowQueue {
	return &RowQueue{
		buf: sim.NewBuffer[PendingRowRequest](name, capacity),
	}
}

// Name returns the name of the queue.
func (q *RowQueue) Name() string {
	return q.buf.Name()
}

// Capacity returns the number of requests the queue can hold.
func (q *RowQueue) Capacity() int {
	return q.buf.Capacity()
}

// Size returns the number of requests in the queue.
func (q *RowQueue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.buf.Size()
}

// Enqueue appends a request. A full queue is left unchanged and ErrOverflow
// is returned.
func (q *RowQueue) Enqueue(req PendingRowRequest) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	if !q.buf.CanPush() {
		return errors.Wrapf(ErrOverflow, "%s holds %d requests, dropping row %d",
			q.buf.Name(), q.buf.Capacity(), req.RowIndex)
	}

	q.buf.Push(req)

	return nil
}

// Peek returns the oldest request without removing it.
func (q *RowQueue) Peek() (PendingRowRequest, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.buf.Peek()
}

// Pop removes and returns the oldest request.
func (q *RowQueue) Pop() (PendingRowRequest, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.buf.Pop()
}

// Snapshot returns the queued requests, oldest first.
func (q *RowQueue) Snapshot() []PendingRowRequest {
	q.lock.Lock()
	defer q.lock.Unlock()

	reqs := make([]PendingRowRequest, q.buf.Size())
	for i := range reqs {
		reqs[i] = q.buf.At(i)
	}

	return reqs
}
