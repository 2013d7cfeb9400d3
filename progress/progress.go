// Package progress reports how far a step definition lookup has come.
package progress

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives progress. Begin is called once with the number of units of
// work, Worked after each finished unit.
type Sink interface {
	Begin(total int)
	Worked(n int)
}

// Nop discards progress.
type Nop struct{}

func (Nop) Begin(int)  {}
func (Nop) Worked(int) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Log writes progress as debug events.
type Log struct {
	Logger zerolog.Logger

	mu    sync.Mutex
	total int
	done  int
}

func (l *Log) Begin(total int) {
	l.mu.Lock()
	l.total, l.done = total, 0
	l.mu.Unlock()
	l.Logger.Debug().Int("total", total).Msg("resolving step definitions")
}

func (l *Log) Worked(n int) {
	l.mu.Lock()
	l.done += n
	done, total := l.done, l.total
	l.mu.Unlock()
	l.Logger.Debug().Int("done", done).Int("total", total).Msg("resolved declaring type")
}

// Counter records progress for inspection.
type Counter struct {
	mu     sync.Mutex
	total  int
	done   int
	begins int
}

func (c *Counter) Begin(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = total
	c.begins++
}

func (c *Counter) Worked(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done += n
}

// Snapshot returns the announced total, the work done so far and how often
// Begin was called.
func (c *Counter) Snapshot() (total, done, begins int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.done, c.begins
}
