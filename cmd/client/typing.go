package main

import (
	"sync"
	"time"
)

const typingIdle = time.Second

// typingDebouncer turns a burst of keystrokes into one typing=true signal,
// followed by a single typing=false once the user has been idle long enough.
type typingDebouncer struct {
	mu     sync.Mutex
	idle   time.Duration
	typing bool
	timer  *time.Timer
	emit   func(typing bool)
}

func newTypingDebouncer(idle time.Duration, emit func(typing bool)) *typingDebouncer {
	return &typingDebouncer{idle: idle, emit: emit}
}

// Touch records activity.
func (d *typingDebouncer) Touch() {
	d.mu.Lock()
	started := !d.typing
	d.typing = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, d.Flush)
	d.mu.Unlock()
	if started {
		d.emit(true)
	}
}

// Flush ends the typing burst now, if there is one.
func (d *typingDebouncer) Flush() {
	d.mu.Lock()
	stopped := d.typing
	d.typing = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	if stopped {
		d.emit(false)
	}
}
