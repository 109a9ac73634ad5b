package task

import (
	"time"
)

type Runner interface {
	Run() error
}

// TickerTask runs a Runner immediately on Start and then periodically at the
// given interval until stopped. Errors from the runner are the runner's to
// surface, the task keeps ticking.
type TickerTask struct {
	interval time.Duration
	runner   Runner
	done     chan struct{}
}

func NewTickerTask(interval time.Duration, runner Runner) *TickerTask {
	return &TickerTask{
		interval: interval,
		runner:   runner,
		done:     make(chan struct{}),
	}
}

// Start runs the task once and schedules recurring runs if the interval is positive.
func (t *TickerTask) Start() {
	t.runner.Run()

	if t.interval > 0 {
		go t.runRecurring()
	}
}

// Stop ends the recurring runs. The runner keeps whatever state it last built.
func (t *TickerTask) Stop() {
	close(t.done)
}

// Done exposes a read only channel closed when the task is stopped.
func (t *TickerTask) Done() <-chan struct{} {
	return t.done
}

func (t *TickerTask) runRecurring() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.runner.Run()
		case <-t.done:
			return
		}
	}
}
