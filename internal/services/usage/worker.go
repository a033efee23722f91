package usage

import (
	"context"
	"sync"

	"github.com/praxislearn/curricula/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker writes usage rows asynchronously so accounting never sits on the
// synthesis hot path. When the buffer is full the row is dropped, not queued.
type Worker struct {
	service  *Service
	tasks    chan models.RecordSynthesisParams
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWorker starts poolSize goroutines draining a bufferSize channel.
func NewWorker(service *Service, poolSize, bufferSize int) *Worker {
	if poolSize <= 0 {
		poolSize = 1
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}

	w := &Worker{
		service: service,
		tasks:   make(chan models.RecordSynthesisParams, bufferSize),
		stopped: make(chan struct{}),
	}

	for range poolSize {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// RecordSynthesis enqueues one usage row without blocking.
func (w *Worker) RecordSynthesis(params models.RecordSynthesisParams) {
	select {
	case <-w.stopped:
		fiberlog.Warnf("[%s] Usage worker stopped, dropping usage row", params.RequestID)
	case w.tasks <- params:
	default:
		fiberlog.Warnf("[%s] Usage buffer full, dropping usage row", params.RequestID)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopped:
			// Drain what is already buffered before exiting.
			for {
				select {
				case params := <-w.tasks:
					w.write(params)
				default:
					return
				}
			}
		case params := <-w.tasks:
			w.write(params)
		}
	}
}

func (w *Worker) write(params models.RecordSynthesisParams) {
	if _, err := w.service.RecordSynthesis(context.Background(), params); err != nil {
		fiberlog.Errorf("[%s] Failed to record synthesis usage: %v", params.RequestID, err)
	}
}

// Stop signals the workers and waits for in-flight writes to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.wg.Wait()
	})
}
