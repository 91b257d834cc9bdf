// Package cache keeps API responses for a limited time, in memory and in a
// [store.Store] so they survive restarts.
//
// # Layout
//
// The index (key to creation time, TTL, session scope and kind) is one blob,
// [IndexBlob], loaded once when the cache is created and rewritten after
// every mutation. Each value is its own blob under [BlobDir], named by the
// xxhash of its key, so a value is only read from the store the first time
// it is requested after a restart. The index blob is deleted when the cache
// becomes empty.
//
// # Expiry
//
// An entry written with TTL T at time C is returned for reads before C+T and
// is evicted by the first read at or after C+T. [ResponseCache.FlushExpired]
// sweeps all expired entries; [WithExpiryCheck] runs it periodically.
//
// # Session scope
//
// Entries written with sessionScoped set belong to the logged in user. When
// the cache is attached to an event bus with [WithEvents], a session start
// for a user other than the last one the cache has seen removes them, and
// the new user id is recorded in the [SettingUserID] setting. Creation
// performs the same check against [WithSession] so a session that started
// before the cache existed is not missed.
//
// # Collections
//
// [ResponseCache.PutCollection] stores an ordered sequence of payloads. The
// blob holds the element count followed by the elements, encoded with
// [github.com/vmihailenco/msgpack/v5].
//
// # Generic Helpers
//
// [GetValue] and [PutValue] store any msgpack encodable value:
//
//	err := cache.PutValue(ctx, c, "user:123", user, time.Hour, true)
//	found, user, err := cache.GetValue[User](ctx, c, "user:123")
//
// [Exec] is a cache-aside helper over them.
package cache
