package tfs

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
	"github.com/Ricardo-Luis-Projects/tecnicofs-go/internal/delay"
)

// inodeRecord is the Go shape of the C inode_t: a type tag, a byte size, a
// block count, a fixed array of direct block references, and one
// indirection block index (meaningful once blockCount exceeds the direct
// fanout).
type inodeRecord struct {
	typ           InodeType
	size          int
	blockCount    int
	direct        []int32 // len == cfg.InodeDirectRefs
	indirectBlock int32   // -1 when unused
}

// inodeTable is the inode table: a fixed array of slots, a free bitmap, a
// table-level mutex serializing allocation/deletion/publish, and one
// reader-writer lock per slot serializing content access.
type inodeTable struct {
	mu    sync.Mutex
	locks []sync.RWMutex
	free  []blockState
	slots []inodeRecord

	pool *pool
	cfg  cfg.Config
}

func newInodeTable(p *pool, c cfg.Config) *inodeTable {
	return &inodeTable{
		locks: make([]sync.RWMutex, c.InodeTableSize),
		free:  make([]blockState, c.InodeTableSize),
		slots: make([]inodeRecord, c.InodeTableSize),
		pool:  p,
		cfg:   c,
	}
}

func (t *inodeTable) validInumber(inumber int) bool {
	return inumber >= 0 && inumber < len(t.free)
}

// create allocates a new inode slot of the given type. Directories get
// their single entries block allocated and initialized to the empty
// sentinel here.
func (t *inodeTable) create(typ InodeType) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createLocked(typ)
}

// createLocked assumes t.mu is already held (used by createInDir, which
// holds the table lock across find-then-create for idempotent creation).
func (t *inodeTable) createLocked(typ InodeType) (int, error) {
	stride := t.pool.scanStride()
	for i := range t.free {
		if i%stride == 0 {
			delay.Insert(t.cfg.Delay)
		}
		if t.free[i] != blockFree {
			continue
		}
		t.free[i] = blockTaken
		delay.Insert(t.cfg.Delay)

		rec := inodeRecord{
			typ:           typ,
			direct:        make([]int32, t.cfg.InodeDirectRefs),
			indirectBlock: -1,
		}

		if typ == DirectoryType {
			b, err := t.pool.alloc()
			if err != nil {
				t.free[i] = blockFree
				return -1, err
			}
			blk, err := t.pool.block(b)
			if err != nil {
				_ = t.pool.freeBlock(b)
				t.free[i] = blockFree
				return -1, err
			}
			initDirBlock(blk, t.cfg)
			rec.direct[0] = int32(b)
			rec.blockCount = 1
		}

		t.slots[i] = rec
		return i, nil
	}
	return -1, fmt.Errorf("%w: no free inodes", ErrNoSpace)
}

// clear releases every data block owned by inumber and resets its size and
// block count, without freeing the slot itself.
func (t *inodeTable) clear(inumber int) error {
	if !t.validInumber(inumber) {
		return fmt.Errorf("%w: inumber %d out of range", ErrInvalidArgument, inumber)
	}
	t.locks[inumber].Lock()
	defer t.locks[inumber].Unlock()
	return t.clearLocked(inumber)
}

// clearLocked assumes the slot's write lock is already held.
func (t *inodeTable) clearLocked(inumber int) error {
	if t.free[inumber] == blockFree {
		return fmt.Errorf("%w: inode %d is not allocated", ErrInvalidState, inumber)
	}

	rec := &t.slots[inumber]

	i := 0
	for i < rec.blockCount && i < t.cfg.InodeDirectRefs {
		if err := t.pool.freeBlock(int(rec.direct[i])); err != nil {
			return err
		}
		i++
	}

	if i < rec.blockCount {
		indirectIdx := int(rec.indirectBlock)
		blk, err := t.pool.block(indirectIdx)
		if err != nil {
			return err
		}
		for i < rec.blockCount {
			if i >= t.cfg.InodeDirectRefs+t.cfg.MaxIndirectRefs {
				return fmt.Errorf("%w: block count exceeds maximum fanout", ErrInvalidState)
			}
			ref := getIndirectRef(blk, i-t.cfg.InodeDirectRefs)
			if err := t.pool.freeBlock(int(ref)); err != nil {
				return err
			}
			i++
		}
		if err := t.pool.freeBlock(indirectIdx); err != nil {
			return err
		}
		rec.indirectBlock = -1
	}

	rec.size = 0
	rec.blockCount = 0
	return nil
}

// delete clears and frees inumber's slot. The table lock is taken before
// the slot's write lock, the only permitted order.
func (t *inodeTable) delete(inumber int) error {
	if !t.validInumber(inumber) {
		return fmt.Errorf("%w: inumber %d out of range", ErrInvalidArgument, inumber)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.locks[inumber].Lock()
	defer t.locks[inumber].Unlock()

	if t.free[inumber] == blockFree {
		return fmt.Errorf("%w: inode %d is not allocated", ErrInvalidState, inumber)
	}
	if err := t.clearLocked(inumber); err != nil {
		return err
	}
	t.free[inumber] = blockFree
	return nil
}

// getBlockLocked returns the physical block index for a logical block of
// inumber. The caller must hold at least a read lock on inumber's slot.
func (t *inodeTable) getBlockLocked(inumber, logical int) (int, error) {
	rec := &t.slots[inumber]
	if logical < 0 || logical >= rec.blockCount {
		return -1, fmt.Errorf("%w: logical block %d out of range", ErrInvalidArgument, logical)
	}
	if logical < t.cfg.InodeDirectRefs {
		return int(rec.direct[logical]), nil
	}
	blk, err := t.pool.block(int(rec.indirectBlock))
	if err != nil {
		return -1, err
	}
	return int(getIndirectRef(blk, logical-t.cfg.InodeDirectRefs)), nil
}

// extendLocked allocates the next logical block for inumber, growing into
// the indirection block once the direct refs are exhausted. The caller
// must hold the slot's write lock.
func (t *inodeTable) extendLocked(inumber int) (int, error) {
	rec := &t.slots[inumber]
	maxBlocks := t.cfg.InodeDirectRefs + t.cfg.MaxIndirectRefs
	if rec.blockCount >= maxBlocks {
		return -1, fmt.Errorf("%w: inode %d already at maximum size", ErrNoSpace, inumber)
	}

	b, err := t.pool.alloc()
	if err != nil {
		return -1, err
	}

	if rec.blockCount < t.cfg.InodeDirectRefs {
		rec.direct[rec.blockCount] = int32(b)
	} else {
		if rec.blockCount == t.cfg.InodeDirectRefs {
			ib, err := t.pool.alloc()
			if err != nil {
				_ = t.pool.freeBlock(b)
				return -1, err
			}
			rec.indirectBlock = int32(ib)
		}
		blk, err := t.pool.block(int(rec.indirectBlock))
		if err != nil {
			_ = t.pool.freeBlock(b)
			return -1, err
		}
		setIndirectRef(blk, rec.blockCount-t.cfg.InodeDirectRefs, int32(b))
	}

	rec.blockCount++
	return b, nil
}

// getIndirectRef/setIndirectRef encode block indices as little-endian
// int32 entries within an indirection block.
func getIndirectRef(blk []byte, idx int) int32 {
	return int32(binary.LittleEndian.Uint32(blk[idx*4:]))
}

func setIndirectRef(blk []byte, idx int, val int32) {
	binary.LittleEndian.PutUint32(blk[idx*4:], uint32(val))
}
