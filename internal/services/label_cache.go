package services

import (
	"log"
	"sync"

	"github.com/ajramos/echomail/internal/mailbox"
)

// LabelCache holds the most recently fetched first page of each label. Pages are copied on the
// way in and out so appends to render state never reach a cached entry.
type LabelCache struct {
	mu      sync.RWMutex
	entries map[mailbox.Label]mailbox.PageResult
	logger  *log.Logger
}

// NewLabelCache creates an empty cache
func NewLabelCache(logger *log.Logger) *LabelCache {
	return &LabelCache{
		entries: make(map[mailbox.Label]mailbox.PageResult),
		logger:  logger,
	}
}

// Get returns a copy of the cached first page of label
func (c *LabelCache) Get(label mailbox.Label) (mailbox.PageResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	page, ok := c.entries[label]
	if !ok {
		return mailbox.PageResult{}, false
	}
	return page.Clone(), true
}

// Put stores a copy of a first page for label, replacing any previous entry
func (c *LabelCache) Put(label mailbox.Label, page mailbox.PageResult) {
	c.mu.Lock()
	c.entries[label] = page.Clone()
	c.mu.Unlock()
	c.logf("label cache: stored %d messages for %s", len(page.Messages), label)
}

// Invalidate drops the entry of a label whose contents were changed by a mutation
func (c *LabelCache) Invalidate(label mailbox.Label) {
	c.mu.Lock()
	_, had := c.entries[label]
	delete(c.entries, label)
	c.mu.Unlock()
	if had {
		c.logf("label cache: invalidated %s", label)
	}
}

// MarkRead clears the unread flag of message id in every cached page that holds it
func (c *LabelCache) MarkRead(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, page := range c.entries {
		for i := range page.Messages {
			if page.Messages[i].ID == id {
				page.Messages[i].Unread = false
			}
		}
	}
}

// Clear drops every entry
func (c *LabelCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[mailbox.Label]mailbox.PageResult)
	c.mu.Unlock()
	c.logf("label cache: cleared")
}

// Len returns the number of cached labels
func (c *LabelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *LabelCache) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
