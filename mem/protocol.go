// Package mem models the bulk memory of a processing core and the transfer
// engine that moves data from it into local buffers.
package mem

import "github.com/pkg/errors"

// A TransferEngine copies bytes from bulk memory into a local buffer
// asynchronously. StartTransfer returns immediately; done is invoked once the
// transfer hardware signals completion, in the transfer-completion context.
//
// An error returned by StartTransfer means the transfer was never started. An
// error passed to done means the transfer started but failed.
type TransferEngine interface {
	StartTransfer(src uint64, dst []byte, done func(err error)) error
}

var (
	// ErrTransient reports a transfer failure that may succeed if retried.
	ErrTransient = errors.New("transient transfer failure")

	// ErrQueueFull is returned when the transfer engine cannot accept more
	// transfer requests.
	ErrQueueFull = errors.New("transfer queue full")
)

// A FaultInjector decides whether a transfer fails. It is called when a
// transfer completes. Returning nil lets the transfer succeed.
type FaultInjector func(src uint64, length int) error

// FailFirstN returns a FaultInjector that fails the first n transfers with
// ErrTransient.
func FailFirstN(n int) FaultInjector {
	failed := 0

	return func(src uint64, length int) error {
		if failed >= n {
			return nil
		}

		failed++

		return errors.Wrapf(ErrTransient, "injected fault %d at 0x%x", failed, src)
	}
}
