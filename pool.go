package tfs

import (
	"fmt"
	"sync"

	"github.com/Ricardo-Luis-Projects/tecnicofs-go/internal/delay"
)

// blockState tags one block or inode slot as free or taken.
type blockState uint8

const (
	blockFree blockState = iota
	blockTaken
)

// pool is the block pool: a fixed array of fixed-size blocks with a
// parallel free bitmap, guarded by a single mutex. Block contents are not
// protected by pool.mu; callers serialize content access through the
// owning inode's lock.
type pool struct {
	mu        sync.Mutex
	free      []blockState
	data      []byte
	blockSize int
	delay     int
}

func newPool(blockSize, blockCount, delaySteps int) *pool {
	return &pool{
		free:      make([]blockState, blockCount),
		data:      make([]byte, blockSize*blockCount),
		blockSize: blockSize,
		delay:     delaySteps,
	}
}

func (p *pool) validIndex(idx int) bool {
	return idx >= 0 && idx < len(p.free)
}

// scanStride is how many bitmap entries are treated as one "block" of the
// free array for delay-insertion purposes.
func (p *pool) scanStride() int {
	if p.blockSize <= 0 {
		return 1
	}
	return p.blockSize
}

// alloc scans the free bitmap for the first free block, marks it taken, and
// returns its index. Returns ErrNoSpace if the pool is exhausted.
func (p *pool) alloc() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stride := p.scanStride()
	for i := range p.free {
		if i%stride == 0 {
			delay.Insert(p.delay)
		}
		if p.free[i] == blockFree {
			p.free[i] = blockTaken
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: no free blocks", ErrNoSpace)
}

// freeBlock marks idx as free again. Callers must free each block exactly
// once; freeing an already-free block is not guaranteed safe.
func (p *pool) freeBlock(idx int) error {
	if !p.validIndex(idx) {
		return fmt.Errorf("%w: block index %d out of range", ErrInvalidArgument, idx)
	}

	delay.Insert(p.delay)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[idx] = blockFree
	return nil
}

// block returns the mutable byte slice backing block idx. No locking is
// performed: the caller must hold the relevant inode's lock for the
// duration of any access to the returned slice.
func (p *pool) block(idx int) ([]byte, error) {
	if !p.validIndex(idx) {
		return nil, fmt.Errorf("%w: block index %d out of range", ErrInvalidArgument, idx)
	}
	delay.Insert(p.delay)
	start := idx * p.blockSize
	return p.data[start : start+p.blockSize], nil
}
