package transfer

import "context"

// Handle tracks a single in-flight transfer.
type Handle struct {
	progress chan float64
	done     chan struct{}
	cancel   context.CancelFunc

	// owned by the transfer goroutine
	last float64

	// readable once done is closed
	file *LocalFile
	err  error
}

// Progress delivers fractions in [0, 1], never decreasing. A slow reader
// only sees the most recent value. The channel is closed when the transfer
// ends, the last value is exactly 1 only on success.
func (h *Handle) Progress() <-chan float64 { return h.progress }

func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Await blocks until the transfer ends.
func (h *Handle) Await() (*LocalFile, error) {
	<-h.done
	return h.file, h.err
}

func (h *Handle) emit(p float64) {
	if p < h.last {
		return
	}
	h.last = p

	for {
		select {
		case h.progress <- p:
			return
		default:
		}
		// drop the stale sample nobody picked up yet
		select {
		case <-h.progress:
		default:
		}
	}
}
