package tfs

import (
	"encoding/binary"
	"fmt"

	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
	"github.com/Ricardo-Luis-Projects/tecnicofs-go/internal/delay"
)

// emptyDirEntry is the sentinel inumber marking an unused directory slot.
const emptyDirEntry int32 = -1

// initDirBlock fills every entry of a freshly allocated directory block
// with the empty sentinel.
func initDirBlock(blk []byte, c cfg.Config) {
	for i := 0; i < c.MaxDirEntries; i++ {
		encodeDirEntry(blk, i, "", emptyDirEntry, c)
	}
}

func encodeDirEntry(blk []byte, i int, name string, inum int32, c cfg.Config) {
	off := i * c.DirEntrySize()
	nameBuf := blk[off : off+c.MaxFileName]
	for j := range nameBuf {
		nameBuf[j] = 0
	}
	copy(nameBuf, truncateName(name, c))
	binary.LittleEndian.PutUint32(blk[off+c.MaxFileName:], uint32(inum))
}

func decodeDirEntry(blk []byte, i int, c cfg.Config) (string, int32) {
	off := i * c.DirEntrySize()
	nameBuf := blk[off : off+c.MaxFileName]
	inum := int32(binary.LittleEndian.Uint32(blk[off+c.MaxFileName:]))
	return cStringName(nameBuf), inum
}

// truncateName silently truncates names longer than the entry's name
// buffer (MaxFileName-1 bytes), leaving room for the terminator.
func truncateName(name string, c cfg.Config) string {
	max := c.MaxFileName - 1
	if len(name) > max {
		return name[:max]
	}
	return name
}

// cStringName treats buf as a NUL-terminated name.
func cStringName(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// findInDir resolves name within the directory inode parent, taking only
// a read lock on parent's slot.
func (t *inodeTable) findInDir(parent int, name string) (int, error) {
	if !t.validInumber(parent) {
		return -1, fmt.Errorf("%w: inumber %d out of range", ErrInvalidArgument, parent)
	}
	t.locks[parent].RLock()
	defer t.locks[parent].RUnlock()
	return t.findInDirLocked(parent, name)
}

// findInDirLocked assumes the caller already holds parent's slot lock
// (read or write).
func (t *inodeTable) findInDirLocked(parent int, name string) (int, error) {
	delay.Insert(t.cfg.Delay)

	rec := &t.slots[parent]
	if rec.typ != DirectoryType {
		return -1, fmt.Errorf("%w: inode %d", ErrNotDirectory, parent)
	}

	blk, err := t.pool.block(int(rec.direct[0]))
	if err != nil {
		return -1, err
	}

	for i := 0; i < t.cfg.MaxDirEntries; i++ {
		entryName, inum := decodeDirEntry(blk, i, t.cfg)
		if inum != emptyDirEntry && entryName == name {
			return int(inum), nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// addDirEntryLocked scans for the first empty slot in parent's entries
// block and fills it with (name, child). The caller must hold parent's
// slot write lock.
func (t *inodeTable) addDirEntryLocked(parent, child int, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}

	delay.Insert(t.cfg.Delay)

	rec := &t.slots[parent]
	if rec.typ != DirectoryType {
		return fmt.Errorf("%w: inode %d", ErrNotDirectory, parent)
	}

	blk, err := t.pool.block(int(rec.direct[0]))
	if err != nil {
		return err
	}

	for i := 0; i < t.cfg.MaxDirEntries; i++ {
		_, inum := decodeDirEntry(blk, i, t.cfg)
		if inum == emptyDirEntry {
			encodeDirEntry(blk, i, name, int32(child), t.cfg)
			return nil
		}
	}
	return fmt.Errorf("%w: directory is full", ErrNoSpace)
}

// createInDir resolves name within parent, creating a new inode of typ if
// it is not already present. If name already names an entry, createInDir
// returns the existing inumber unchanged — the requested type is ignored.
//
// On success in allocating an inode but failure to publish it into the
// directory (e.g. the directory is full), the allocated inode is released
// rather than left orphaned.
func (t *inodeTable) createInDir(parent int, typ InodeType, name string) (int, error) {
	if !t.validInumber(parent) {
		return -1, fmt.Errorf("%w: inumber %d out of range", ErrInvalidArgument, parent)
	}
	if name == "" {
		return -1, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.locks[parent].Lock()
	defer t.locks[parent].Unlock()

	if sub, err := t.findInDirLocked(parent, name); err == nil {
		return sub, nil
	}

	child, err := t.createLocked(typ)
	if err != nil {
		return -1, err
	}

	if err := t.addDirEntryLocked(parent, child, name); err != nil {
		if rerr := t.releaseLocked(child); rerr != nil {
			return -1, fmt.Errorf("%w (and cleanup failed: %v)", err, rerr)
		}
		return -1, err
	}

	return child, nil
}

// releaseLocked clears and frees a freshly allocated inode when it could
// not be published. The caller must already hold t.mu; releaseLocked takes
// only the child's slot lock, preserving the table->slot acquisition order.
func (t *inodeTable) releaseLocked(inumber int) error {
	t.locks[inumber].Lock()
	defer t.locks[inumber].Unlock()

	if err := t.clearLocked(inumber); err != nil {
		return err
	}
	t.free[inumber] = blockFree
	return nil
}
