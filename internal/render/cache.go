package render

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// rendererCache keeps idle renderers per option set. A TermRenderer is not
// safe for concurrent Render calls, so each caller borrows one exclusively.
type rendererCache struct {
	mu   sync.Mutex
	idle map[Options][]*glamour.TermRenderer
}

// maxIdle bounds the idle renderers kept for one option set
const maxIdle = 4

var renderers = &rendererCache{idle: make(map[Options][]*glamour.TermRenderer)}

// acquire hands out an idle renderer for opts or builds a new one
func (c *rendererCache) acquire(opts Options) (*glamour.TermRenderer, error) {
	c.mu.Lock()
	if free := c.idle[opts]; len(free) > 0 {
		r := free[len(free)-1]
		c.idle[opts] = free[:len(free)-1]
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	return createRenderer(opts)
}

// release returns r to the idle set; extras beyond maxIdle are dropped
func (c *rendererCache) release(opts Options, r *glamour.TermRenderer) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.idle[opts]) < maxIdle {
		c.idle[opts] = append(c.idle[opts], r)
	}
}

func (c *rendererCache) reset() {
	c.mu.Lock()
	c.idle = make(map[Options][]*glamour.TermRenderer)
	c.mu.Unlock()
}

func (c *rendererCache) idleCount(opts Options) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idle[opts])
}

// createRenderer builds a TermRenderer. WithStylePath resolves glamour's
// standard style names before falling back to a JSON file on disk.
func createRenderer(opts Options) (*glamour.TermRenderer, error) {
	rendererOpts := []glamour.TermRendererOption{
		glamour.WithStylePath(opts.Style),
		glamour.WithWordWrap(opts.Width),
		glamour.WithTableWrap(opts.TableWrap),
		glamour.WithInlineTableLinks(opts.InlineTableLinks),
	}
	if opts.EnableEmoji {
		rendererOpts = append(rendererOpts, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		rendererOpts = append(rendererOpts, glamour.WithPreservedNewLines())
	}
	return glamour.NewTermRenderer(rendererOpts...)
}
