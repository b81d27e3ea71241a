package job

import (
	"sync"
	"time"
)

// interval is a cancellable repeating task. Ticks are serialized: the
// next one is scheduled only after the current invocation returns, so a
// slow handler can never observe out-of-order runs. Stop is idempotent
// and safe to call from inside the tick function.
type interval struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// startInterval begins running fn every d. With immediate set, the first
// tick fires right away instead of after the first delay.
func startInterval(d time.Duration, immediate bool, fn func()) *interval {
	iv := &interval{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	initial := d
	if immediate {
		initial = 0
	}

	go func() {
		defer close(iv.done)
		timer := time.NewTimer(initial)
		defer timer.Stop()
		for {
			select {
			case <-iv.stop:
				return
			case <-timer.C:
			}
			fn()
			timer.Reset(d)
		}
	}()

	return iv
}

func (iv *interval) Stop() {
	iv.once.Do(func() { close(iv.stop) })
}
