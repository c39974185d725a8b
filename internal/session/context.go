package session

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/evacsim/pkg/core"
)

// Context holds the current run and episode. It is read by the logging context provider
// from any goroutine.
type Context struct {
	mu      sync.RWMutex
	Run     *core.Run
	Episode int
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Run: &core.Run{ID: "no-run", PanicMode: "none"},
	}
}

// GetRun returns the current run
func (c *Context) GetRun() *core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Run
}

// GetEpisode returns the index of the running episode, starting at 1.
func (c *Context) GetEpisode() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Episode
}

// SetRun starts a new run and resets the episode counter.
func (c *Context) SetRun(run *core.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Run = run
	c.Episode = 0
}

// SetEpisode records the episode that is being simulated.
func (c *Context) SetEpisode(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Episode = n
}

// Attrs is a logging.ContextProvider.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []slog.Attr{
		slog.String("run_id", c.Run.ID),
		slog.String("panic_mode", c.Run.PanicMode),
		slog.Int("episode", c.Episode),
	}
}
