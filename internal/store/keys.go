package store

import "sync"

// Pooled buffers for key construction on the read/write hot path. 256
// bytes covers a prefix plus two NanoIDs with separators.
var keyPool = sync.Pool{
	New: func() any { return make([]byte, 0, 256) },
}

// buildKey assembles prefix+suffix into a pooled buffer. Callers MUST
// call releaseKey when done with the key.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	return append(append(buf[:0], prefix...), suffix...)
}

// buildCompositeKey assembles a two-part key such as
// rating:<bookID>:<userID>. Callers MUST call releaseKey when done.
func buildCompositeKey(prefix, first, second string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = append(append(buf[:0], prefix...), first...)
	buf = append(buf, ':')
	return append(buf, second...)
}

// releaseKey returns a key buffer to the pool. The slice must not be
// used afterwards. Oversized buffers are dropped instead of pooled.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
