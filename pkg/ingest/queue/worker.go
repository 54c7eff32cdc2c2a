package queue

import "github.com/newprojectblitz/chat-chrome-chatterbox/pkg/telemetry"

// RunWorker consumes items one by one until the queue is closed and drained
// or stop is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Op) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				tr := telemetry.Track("ingest.worker_process")
				_ = handler(it.Op)
				tr.Finish()
			}(it)
		case <-stop:
			return
		}
	}
}
