package policy

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"

	"voicebot/agent/internal/classifier"
)

// verdictCache memoizes severity verdicts per exact utterance so a
// repeated phrasing never costs a second model call. Bounded LRU,
// content-hash keyed. Only successful verdicts are cached; errors must
// stay retryable on the next turn.
type verdictCache struct {
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key     string
	verdict classifier.Severity
}

func newVerdictCache(capacity int) *verdictCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &verdictCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *verdictCache) get(key string) (classifier.Severity, bool) {
	el, ok := c.entries[key]
	if !ok {
		return classifier.Severity{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).verdict, true
}

func (c *verdictCache) add(key string, v classifier.Severity) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).verdict = v
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, verdict: v})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *verdictCache) len() int { return c.order.Len() }
