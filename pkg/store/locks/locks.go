// Package locks hands out named mutexes used to serialise read-modify-write
// sequences against the key-value store.
package locks

import (
	"sync"
)

var (
	channelLocks = make(map[string]*sync.Mutex)
	messageLocks = make(map[string]*sync.Mutex)
	locksMu      sync.Mutex
)

func get(m map[string]*sync.Mutex, key string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	if l, ok := m[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	m[key] = l
	return l
}

// Channel returns the mutex for a channel (creates if needed).
func Channel(channelID string) *sync.Mutex {
	return get(channelLocks, channelID)
}

// Message returns the mutex guarding a message's reaction sequence.
func Message(messageID string) *sync.Mutex {
	return get(messageLocks, messageID)
}

// Reset forgets every lock. Only safe while no lock is held; used when the
// database is closed.
func Reset() {
	locksMu.Lock()
	defer locksMu.Unlock()
	channelLocks = make(map[string]*sync.Mutex)
	messageLocks = make(map[string]*sync.Mutex)
}
