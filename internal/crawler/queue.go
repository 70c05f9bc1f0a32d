// Package crawler runs batches of store scrapes with deduplication,
// bounded concurrency and a delay between requests.
package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// Queue holds target keys in arrival order and rejects duplicates.
type Queue struct {
	mu      sync.Mutex
	queue   []Item
	visited map[string]bool
}

// Item is one queued target. Index is its position in the input batch.
type Item struct {
	Key   string
	Index int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		queue:   make([]Item, 0),
		visited: make(map[string]bool),
	}
}

// Add queues key unless it was already seen. Keys that normalize to ""
// are rejected.
func (q *Queue) Add(key string, index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	normalized := NormalizeKey(key)
	if normalized == "" {
		return false
	}
	if q.visited[normalized] {
		return false
	}

	q.visited[normalized] = true
	q.queue = append(q.queue, Item{Key: normalized, Index: index})
	return true
}

// Pop removes and returns the next item.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.queue) == 0 {
		return Item{}, false
	}

	item := q.queue[0]
	q.queue = q.queue[1:]
	return item, true
}

// Len returns the number of items waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// NormalizeKey trims key and, when it is an absolute URL, drops the
// fragment and any trailing slash. Other keys such as place ids are
// returned trimmed.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if !strings.Contains(key, "://") {
		return key
	}

	parsed, err := url.Parse(key)
	if err != nil || parsed.Host == "" {
		return ""
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	if len(parsed.Path) > 1 && parsed.Path[len(parsed.Path)-1] == '/' {
		parsed.Path = parsed.Path[:len(parsed.Path)-1]
	}

	return parsed.String()
}
