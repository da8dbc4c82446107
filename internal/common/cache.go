package common

import (
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache struct {
	*cache.Cache
}

func NewCache(expirationTime, cleanupTime time.Duration) *Cache {
	return &Cache{cache.New(expirationTime, cleanupTime)}
}

func (c *Cache) Set(key string, value interface{}, expiration ...time.Duration) {
	if len(expiration) > 0 {
		c.Cache.Set(key, value, expiration[0])
		return
	}

	c.Cache.Set(key, value, cache.DefaultExpiration)
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

func (c *Cache) Delete(key string) {
	c.Cache.Delete(key)
}

// DeletePrefix removes every key that starts with prefix.
func (c *Cache) DeletePrefix(prefix string) {
	for key := range c.Cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.Cache.Delete(key)
		}
	}
}

func (c *Cache) Flush() {
	c.Cache.Flush()
}

func CacheKeyContent(slug string) string {
	return "content:" + slug
}

func CacheKeyContentIndex() string {
	return "content_index"
}

func CacheKeyCommentsPrefix(slug string) string {
	return "comments:" + slug + ":"
}

func CacheKeyComments(slug, sort string) string {
	return CacheKeyCommentsPrefix(slug) + sort
}

func CacheKeyCommentStats(slug string) string {
	return "comment_stats:" + slug
}

func CacheKeyComment(id int64) string {
	return "comment:" + strconv.FormatInt(id, 10)
}
