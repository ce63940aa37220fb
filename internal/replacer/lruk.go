// Package replacer implements the LRU-K eviction policy the buffer pool
// consults when it needs to reclaim a frame: frames with fewer than K
// recorded accesses are always colder than frames with K or more, and
// each set breaks ties by FIFO / k-distance respectively. Ported from
// bustub's buffer/lru_k_replacer.cpp, trading its std::list<>::iterator
// bookkeeping for Go's container/list.Element pointers stored inline in
// each frame's tracking struct.
package replacer

import (
	"container/list"
	"fmt"
	"sync"
)

// frameState tracks one frame's access history. elem points at this
// frame's node in whichever of historyList/cacheList currently holds it.
type frameState struct {
	frameID     int
	evictable   bool
	accessCount int
	timestamps  []int64 // bounded FIFO, at most k entries
	elem        *list.Element
}

// LRUKReplacer is the concurrent eviction policy: a monotonic logical
// clock, a history list (FIFO, front = oldest) and a cache list (sorted
// by k-distance, front = smallest), all guarded by one latch.
type LRUKReplacer struct {
	mu               sync.Mutex
	replacerSize     int
	k                int
	currentTimestamp int64
	historyList      *list.List
	cacheList        *list.List
	frames           map[int]*frameState
	evictableCount   int
}

// New builds a replacer tracking up to numFrames distinct frame ids,
// using k as the history/cache threshold.
func New(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		replacerSize: numFrames,
		k:            k,
		historyList:  list.New(),
		cacheList:    list.New(),
		frames:       make(map[int]*frameState),
	}
}

// RecordAccess registers one access to frameID at the current logical
// timestamp, creating the frame's tracking state on first sight and
// otherwise advancing it between the history and cache sets per the
// design's transition table.
//
// The design flags the source's frame_id > replacer_size_ bound check
// as an off-by-one (it admits frame_id == replacer_size_, one past the
// valid range); this implementation accepts only frame_id <
// replacer_size_.
func (r *LRUKReplacer) RecordAccess(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameID < 0 || frameID >= r.replacerSize {
		panic(fmt.Sprintf("replacer: invalid frame id %d", frameID))
	}

	r.currentTimestamp++

	fs, ok := r.frames[frameID]
	if !ok {
		elem := r.historyList.PushBack(frameID)
		r.frames[frameID] = &frameState{
			frameID:     frameID,
			evictable:   true,
			accessCount: 1,
			timestamps:  []int64{r.currentTimestamp},
			elem:        elem,
		}
		r.evictableCount++
		return
	}

	fs.accessCount++
	fs.timestamps = append(fs.timestamps, r.currentTimestamp)

	switch {
	case fs.accessCount < r.k:
		// Stays in history; nothing else to update.

	case fs.accessCount == r.k:
		pivot := fs.timestamps[0]
		r.historyList.Remove(fs.elem)
		fs.elem = r.insertSortedFrom(r.cacheList.Front(), frameID, pivot)

	default:
		fs.timestamps = fs.timestamps[1:]
		pivot := fs.timestamps[0]
		start := fs.elem.Next()
		r.cacheList.Remove(fs.elem)
		fs.elem = r.insertSortedFrom(start, frameID, pivot)
	}
}

// insertSortedFrom walks the cache list forward from `from`, inserting
// frameID just before the first entry whose k-distance is not smaller
// than pivot (i.e. keeping cacheList sorted ascending by k-distance).
func (r *LRUKReplacer) insertSortedFrom(from *list.Element, frameID int, pivot int64) *list.Element {
	at := from
	for at != nil && r.frames[at.Value.(int)].timestamps[0] < pivot {
		at = at.Next()
	}
	if at == nil {
		return r.cacheList.PushBack(frameID)
	}
	return r.cacheList.InsertBefore(frameID, at)
}

// SetEvictable flips a frame's evictable flag without moving it in
// either list.
func (r *LRUKReplacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fs, ok := r.frames[frameID]
	if !ok {
		return
	}
	if !fs.evictable && evictable {
		r.evictableCount++
	}
	if fs.evictable && !evictable {
		r.evictableCount--
	}
	fs.evictable = evictable
}

// Evict returns the coldest evictable frame — the first evictable entry
// of historyList, else the first evictable entry of cacheList — and
// stops tracking it entirely.
func (r *LRUKReplacer) Evict() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evictableCount <= 0 {
		return 0, false
	}

	for e := r.historyList.Front(); e != nil; e = e.Next() {
		fid := e.Value.(int)
		if r.frames[fid].evictable {
			r.historyList.Remove(e)
			delete(r.frames, fid)
			r.evictableCount--
			return fid, true
		}
	}

	for e := r.cacheList.Front(); e != nil; e = e.Next() {
		fid := e.Value.(int)
		if r.frames[fid].evictable {
			r.cacheList.Remove(e)
			delete(r.frames, fid)
			r.evictableCount--
			return fid, true
		}
	}

	return 0, false
}

// Remove explicitly drops a tracked frame. Removing a non-evictable
// frame is a fatal precondition violation, matching the source's
// BUSTUB_ASSERT.
func (r *LRUKReplacer) Remove(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fs, ok := r.frames[frameID]
	if !ok {
		return
	}
	if !fs.evictable {
		panic(fmt.Sprintf("replacer: remove of non-evictable frame %d", frameID))
	}

	if fs.accessCount >= r.k {
		r.cacheList.Remove(fs.elem)
	} else {
		r.historyList.Remove(fs.elem)
	}
	delete(r.frames, frameID)
	r.evictableCount--
}

// Size returns the number of currently evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableCount
}
