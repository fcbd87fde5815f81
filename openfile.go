package tfs

import (
	"fmt"
	"sync"

	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
)

// openFileEntry is one slot of the Open File Table: an inumber, an append
// flag, a byte offset, and the per-entry lock that serializes read/write on
// this handle.
type openFileEntry struct {
	mu     sync.Mutex
	inum   int
	append bool
	offset int
}

// openFileTable is the open file table: a fixed array of handle records, a
// table-level lock/condition pair gating admission and quiescent shutdown,
// and a live-handle counter.
type openFileTable struct {
	mu   sync.Mutex
	cond *sync.Cond

	free    []blockState
	entries []openFileEntry
	live    int

	inodes *inodeTable
	cfg    cfg.Config
}

func newOpenFileTable(inodes *inodeTable, c cfg.Config) *openFileTable {
	t := &openFileTable{
		free:    make([]blockState, c.MaxOpenFiles),
		entries: make([]openFileEntry, c.MaxOpenFiles),
		inodes:  inodes,
		cfg:     c,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *openFileTable) validHandle(handle int) bool {
	return handle >= 0 && handle < len(t.free)
}

// add admits a new handle for inumber, recording the append flag and
// starting the offset at zero.
func (t *openFileTable) add(inumber int, appendMode bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.free {
		if t.free[i] == blockFree {
			t.free[i] = blockTaken
			t.entries[i] = openFileEntry{inum: inumber, append: appendMode}
			t.live++
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: no free open file entries", ErrNoSpace)
}

// remove closes handle, decrementing the live-handle counter and waking
// any DestroyAfterAllClosed waiter once it reaches zero. The lock is always
// released on every path, including error paths.
func (t *openFileTable) remove(handle int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validHandle(handle) || t.free[handle] != blockTaken {
		return fmt.Errorf("%w: invalid file handle %d", ErrInvalidArgument, handle)
	}

	t.free[handle] = blockFree
	t.live--
	if t.live == 0 {
		t.cond.Broadcast()
	}
	return nil
}

// waitForQuiescence blocks until no handles are open. It rechecks the live
// count in a loop under the lock rather than waking on a single signal.
func (t *openFileTable) waitForQuiescence() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.live > 0 {
		t.cond.Wait()
	}
}

// write performs a full, offset-advancing transfer to handle's inode,
// including the append-snaps-offset and offset-past-size-fails rules and
// the clamp-to-max-file-size behavior.
func (t *openFileTable) write(handle int, buf []byte) (int, error) {
	if !t.validHandle(handle) {
		return -1, fmt.Errorf("%w: invalid file handle %d", ErrInvalidArgument, handle)
	}
	entry := &t.entries[handle]

	entry.mu.Lock()
	defer entry.mu.Unlock()

	it := t.inodes
	inumber := entry.inum

	it.locks[inumber].Lock()
	defer it.locks[inumber].Unlock()

	rec := &it.slots[inumber]

	if entry.append {
		entry.offset = rec.size
	}
	if entry.offset > rec.size {
		return -1, fmt.Errorf("%w: offset %d exceeds size %d", ErrInvalidState, entry.offset, rec.size)
	}

	toWrite := len(buf)
	if room := it.cfg.MaxFileSize - entry.offset; toWrite > room {
		toWrite = room
	}

	written := 0
	for written < toWrite {
		bi := entry.offset / it.cfg.BlockSize
		inBlockOff := entry.offset % it.cfg.BlockSize

		if rec.blockCount == bi {
			if _, err := it.extendLocked(inumber); err != nil {
				return -1, err
			}
		}

		phys, err := it.getBlockLocked(inumber, bi)
		if err != nil {
			return -1, err
		}
		blk, err := it.pool.block(phys)
		if err != nil {
			return -1, err
		}

		n := toWrite - written
		if inBlockOff+n > it.cfg.BlockSize {
			n = it.cfg.BlockSize - inBlockOff
		}
		copy(blk[inBlockOff:inBlockOff+n], buf[written:written+n])

		entry.offset += n
		written += n
	}

	if entry.offset > rec.size {
		rec.size = entry.offset
	}
	return toWrite, nil
}

// read performs a full, offset-advancing transfer from handle's inode.
func (t *openFileTable) read(handle int, buf []byte) (int, error) {
	if !t.validHandle(handle) {
		return -1, fmt.Errorf("%w: invalid file handle %d", ErrInvalidArgument, handle)
	}
	entry := &t.entries[handle]

	entry.mu.Lock()
	defer entry.mu.Unlock()

	it := t.inodes
	inumber := entry.inum

	it.locks[inumber].RLock()
	defer it.locks[inumber].RUnlock()

	rec := &it.slots[inumber]

	if entry.append {
		entry.offset = rec.size
	}
	if entry.offset > rec.size {
		return -1, fmt.Errorf("%w: offset %d exceeds size %d", ErrInvalidState, entry.offset, rec.size)
	}

	toRead := len(buf)
	if avail := rec.size - entry.offset; toRead > avail {
		toRead = avail
	}

	read := 0
	for read < toRead {
		bi := entry.offset / it.cfg.BlockSize
		inBlockOff := entry.offset % it.cfg.BlockSize

		phys, err := it.getBlockLocked(inumber, bi)
		if err != nil {
			return -1, err
		}
		blk, err := it.pool.block(phys)
		if err != nil {
			return -1, err
		}

		n := toRead - read
		if inBlockOff+n > it.cfg.BlockSize {
			n = it.cfg.BlockSize - inBlockOff
		}
		copy(buf[read:read+n], blk[inBlockOff:inBlockOff+n])

		entry.offset += n
		read += n
	}
	return toRead, nil
}
