package algorithms

import "sync"

const shardCount = 256

// paddedMutex wraps a sync.Mutex with padding to prevent false sharing.
// sync.Mutex is 8 bytes on 64-bit systems; the padding fills a 64 byte cache line.
type paddedMutex struct {
	sync.Mutex
	_ [56]byte
}

// fnv32a is a local implementation of FNV-1a 32-bit hash to avoid allocation and imports
func fnv32a(s string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
