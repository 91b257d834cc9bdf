package cache

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/agentuity/go-apiclient/store"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// IndexBlob holds the metadata of every entry.
	IndexBlob = "api_meta.dat"
	// BlobDir holds one payload blob per entry.
	BlobDir = "api_cache"
	// SettingUserID records the user the session scoped entries belong to.
	SettingUserID = "API_CACHE_USER_ID"
)

type meta struct {
	CreatedAt     time.Time     `msgpack:"created"`
	TTL           time.Duration `msgpack:"ttl"`
	SessionScoped bool          `msgpack:"session"`
	Collection    bool          `msgpack:"collection"`
}

// expired reports whether the entry is absent at now.
func (m *meta) expired(now time.Time) bool {
	return !now.Before(m.CreatedAt.Add(m.TTL))
}

func blobName(key string) string {
	return BlobDir + "/" + strconv.FormatUint(xxhash.Sum64String(key), 16) + ".dat"
}

func (c *ResponseCache) load(ctx context.Context) {
	var err error
	if c.userID, err = store.GetInt(ctx, c.store, SettingUserID); err != nil {
		c.logger.Warn("error reading cache user: %s", err)
	}
	buf, err := c.store.ReadBlob(ctx, IndexBlob)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("error reading cache index: %s", err)
		return
	}
	index := make(map[string]*meta)
	if err := msgpack.Unmarshal(buf, &index); err != nil {
		c.logger.Warn("discarding unreadable cache index: %s", err)
		return
	}
	c.index = index
}

func (c *ResponseCache) saveIndex(ctx context.Context) {
	if len(c.index) == 0 {
		if err := c.store.DeleteBlob(ctx, IndexBlob); err != nil {
			c.logger.Warn("error deleting cache index: %s", err)
		}
		return
	}
	buf, err := msgpack.Marshal(c.index)
	if err != nil {
		c.logger.Error("error encoding cache index: %s", err)
		return
	}
	if err := c.store.WriteBlob(ctx, IndexBlob, buf); err != nil {
		c.logger.Warn("error writing cache index: %s", err)
	}
}

func (c *ResponseCache) writeBlob(ctx context.Context, key string, buf []byte) {
	if err := c.store.WriteBlob(ctx, blobName(key), buf); err != nil {
		c.logger.Warn("error writing cache blob for %s: %s", key, err)
	}
}

func encodeCollection(items [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeInt(int64(len(items))); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := enc.EncodeBytes(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeCollection(buf []byte) ([][]byte, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(buf))
	n, err := dec.DecodeInt()
	if err != nil {
		return nil, errors.Wrap(err, "error decoding collection length")
	}
	if n < 0 || n > len(buf) {
		return nil, errors.Newf("invalid collection length %d", n)
	}
	items := make([][]byte, n)
	for i := range items {
		if items[i], err = dec.DecodeBytes(); err != nil {
			return nil, errors.Wrapf(err, "error decoding collection element %d", i)
		}
	}
	return items, nil
}
