// Package scheduler runs recurring background tasks on fixed intervals.
// The deployment and balance services use it for their polling loops.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one unit of recurring work. Errors are logged and do not stop
// the loop; transient failures resolve themselves on a later tick.
type Task func(ctx context.Context) error

// Repeater runs a task immediately and then on every interval tick until
// the context is cancelled or Stop is called.
type Repeater struct {
	name     string
	interval time.Duration
	task     Task
	log      zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewRepeater(name string, interval time.Duration, task Task, log zerolog.Logger) *Repeater {
	return &Repeater{
		name:     name,
		interval: interval,
		task:     task,
		log:      log.With().Str("component", "scheduler").Str("task", name).Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling goroutine. The first run happens right away,
// not after the first interval.
func (r *Repeater) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer close(r.done)
		defer ticker.Stop()
		r.run(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.run(ctx)
			}
		}
	}()
}

func (r *Repeater) run(ctx context.Context) {
	if err := r.task(ctx); err != nil {
		r.log.Warn().Err(err).Msg("task failed, will retry on next tick")
	}
}

// Stop terminates the loop and waits for the current run to finish.
func (r *Repeater) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}
