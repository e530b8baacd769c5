// Copyright 2025 The pravaha Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lru implements a byte-budgeted, least-recently-used cache
// keyed by string. It is the index half of the chunk cache:
// it knows nothing about chunks, URLs, or fetches, only about evicting
// the least-recently-used entry once the sum of Size()s exceeds a cap.
package lru

import (
	"container/list"
	"errors"
	"fmt"

	"github.com/jacobsa/syncutil"
)

const (
	InvalidEntryErrorMsg           = "invalid entry: nil value"
	EntryNotExistErrMsg            = "entry does not exist"
	InvalidUpdateEntrySizeErrorMsg = "update must not change entry size"
)

// ValueType is anything a Cache can hold: it must know its own size in
// bytes, which is what the cache charges against its byte budget.
type ValueType interface {
	Size() uint64
}

type entry struct {
	key   string
	value ValueType
}

// Cache is a byte-budgeted LRU. The zero value is not usable; construct
// with NewCache. Safe for concurrent use.
type Cache struct {
	mu syncutil.InvariantMutex

	maxSize   uint64 // GUARDED_BY(mu)
	totalSize uint64 // GUARDED_BY(mu)

	ll  *list.List               // GUARDED_BY(mu); front = most recently used
	idx map[string]*list.Element // GUARDED_BY(mu)
}

// NewCache creates an empty cache with the given byte budget.
func NewCache(maxSize uint64) *Cache {
	c := &Cache{
		maxSize: maxSize,
		ll:      list.New(),
		idx:     make(map[string]*list.Element),
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

// checkInvariants panics if the cache's bookkeeping has drifted from its
// contents. Only run when syncutil.EnableInvariantChecking() has been
// called (tests do this; production code does not pay the cost).
func (c *Cache) checkInvariants() {
	if c.ll.Len() != len(c.idx) {
		panic(fmt.Sprintf("list has %d entries but index has %d", c.ll.Len(), len(c.idx)))
	}

	var sum uint64
	for e := c.ll.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*entry)
		if c.idx[ent.key] != e {
			panic(fmt.Sprintf("index for key %q does not point at its list element", ent.key))
		}
		sum += ent.value.Size()
	}

	if sum != c.totalSize {
		panic(fmt.Sprintf("tracked totalSize %d does not match summed entry sizes %d", c.totalSize, sum))
	}
}

// Insert adds or replaces the entry for key, then evicts
// least-recently-used entries (other than the one just inserted) until
// the cache is back at or under its byte budget. It returns the values
// evicted as a result, oldest first. Insert panics if value is nil.
//
// An oversize single entry (larger than maxSize) is still admitted —
// the budget is a soft target, not a hard gate on forward progress —
// but every other entry is evicted to make room for it.
func (c *Cache) Insert(key string, value ValueType) []ValueType {
	if value == nil {
		panic(InvalidEntryErrorMsg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.idx[key]; ok {
		c.totalSize -= old.Value.(*entry).value.Size()
		c.ll.Remove(old)
		delete(c.idx, key)
	}

	el := c.ll.PushFront(&entry{key: key, value: value})
	c.idx[key] = el
	c.totalSize += value.Size()

	var evicted []ValueType
	for c.totalSize > c.maxSize && c.ll.Len() > 1 {
		back := c.ll.Back()
		if back == el {
			break
		}
		ent := c.ll.Remove(back).(*entry)
		delete(c.idx, ent.key)
		c.totalSize -= ent.value.Size()
		evicted = append(evicted, ent.value)
	}

	return evicted
}

// LookUp returns the value for key, marking it most-recently-used, or
// nil if key is not present.
func (c *Cache) LookUp(key string) ValueType {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[key]
	if !ok {
		return nil
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).value
}

// LookUpWithoutChangingOrder returns the value for key without touching
// its recency, or nil if key is not present.
func (c *Cache) LookUpWithoutChangingOrder(key string) ValueType {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[key]
	if !ok {
		return nil
	}
	return el.Value.(*entry).value
}

// Erase removes key from the cache, returning its value, or nil if key
// was not present.
func (c *Cache) Erase(key string) ValueType {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[key]
	if !ok {
		return nil
	}
	ent := c.ll.Remove(el).(*entry)
	delete(c.idx, key)
	c.totalSize -= ent.value.Size()
	return ent.value
}

// UpdateWithoutChangingOrder replaces the value stored for key without
// touching its recency. It returns an error if key is not present, or
// if value's size differs from the size of the entry it replaces (size
// changes must go through Erase+Insert, since they may require
// eviction).
func (c *Cache) UpdateWithoutChangingOrder(key string, value ValueType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.idx[key]
	if !ok {
		return errors.New(EntryNotExistErrMsg)
	}

	old := el.Value.(*entry)
	if old.value.Size() != value.Size() {
		return errors.New(InvalidUpdateEntrySizeErrorMsg)
	}

	old.value = value
	return nil
}

// TotalSize returns the sum of Size() across all currently-held entries.
func (c *Cache) TotalSize() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

// MaxSize returns the cache's configured byte budget.
func (c *Cache) MaxSize() uint64 {
	return c.maxSize
}
