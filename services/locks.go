package services

import (
	"sort"
	"sync"
)

// keyedMutex serializes writers per string key. Lock takes every key in
// sorted order so two writers grabbing overlapping key sets cannot deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*entryLock{}}
}

func (k *keyedMutex) Lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	entries := make([]*entryLock, 0, len(sorted))
	for _, key := range sorted {
		if key == "" {
			continue
		}
		k.mu.Lock()
		e, ok := k.locks[key]
		if !ok {
			e = &entryLock{}
			k.locks[key] = e
		}
		e.refs++
		k.mu.Unlock()

		e.mu.Lock()
		entries = append(entries, e)
	}

	keysHeld := make([]string, 0, len(sorted))
	for _, key := range sorted {
		if key != "" {
			keysHeld = append(keysHeld, key)
		}
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()

			k.mu.Lock()
			e := k.locks[keysHeld[i]]
			if e != nil {
				e.refs--
				if e.refs == 0 {
					delete(k.locks, keysHeld[i])
				}
			}
			k.mu.Unlock()
		}
	}
}
