// Package arena implements the legacy heap: a best-fit allocator with
// neighbor coalescing over a caller-supplied memory region. The allocator
// never grows the region, and all bookkeeping lives outside it, so the
// externally observable layout (offsets, exhaustion points, coalescing
// behavior) matches the original block-header implementation.
package arena

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"fortio.org/safecast"
)

// Alignment is the word size every returned block is aligned to.
const Alignment = 8

// Ptr is a byte offset into the heap region. The zero Ptr is never a valid
// allocation; the first Alignment bytes of the region are reserved so that
// 0 can stand in for the original NULL return.
type Ptr uint32

var (
	// ErrExhausted means no free block can satisfy the request.
	ErrExhausted = errors.New("arena: out of memory")
	// ErrBadSize means the requested size is not allocatable.
	ErrBadSize = errors.New("arena: bad allocation size")
	// ErrBadPointer means the pointer does not name an allocated block.
	ErrBadPointer = errors.New("arena: bad pointer")
	// ErrDoubleFree means the block at the pointer is already free.
	ErrDoubleFree = errors.New("arena: double free")
	// ErrRegionTooSmall means the supplied region cannot hold any block.
	ErrRegionTooSmall = errors.New("arena: region too small")
)

type block struct {
	off  int
	size int
	free bool
}

// Heap manages one caller-owned region. All operations are serialized by
// the heap's own lock.
type Heap struct {
	mu     sync.Mutex
	region []byte
	blocks []block // sorted by offset, tiles [Alignment, len(region))
	used   int     // bytes currently allocated, maintained for O(1) Stats
}

// Stats reports heap occupancy in bytes.
type Stats struct {
	Total int
	Used  int
	Free  int
}

// New creates a heap over the supplied region.
func New(region []byte) (*Heap, error) {
	if len(region) < 2*Alignment {
		return nil, fmt.Errorf("%w: %d bytes", ErrRegionTooSmall, len(region))
	}
	usable := len(region) - Alignment
	usable -= usable % Alignment
	return &Heap{
		region: region,
		blocks: []block{{off: Alignment, size: usable, free: true}},
	}, nil
}

// Alloc returns the offset of a block of at least size bytes, chosen
// best-fit: the smallest free block that satisfies the request, ties broken
// by lowest offset.
func (h *Heap) Alloc(size int) (Ptr, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	need := size + (Alignment-size%Alignment)%Alignment

	h.mu.Lock()
	defer h.mu.Unlock()

	best := -1
	for i, b := range h.blocks {
		if !b.free || b.size < need {
			continue
		}
		// Strict < keeps the lowest-offset block among equal sizes,
		// since the walk is in offset order.
		if best < 0 || b.size < h.blocks[best].size {
			best = i
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: need %d bytes", ErrExhausted, need)
	}

	b := &h.blocks[best]
	if rem := b.size - need; rem >= Alignment {
		h.blocks = append(h.blocks, block{})
		copy(h.blocks[best+2:], h.blocks[best+1:])
		h.blocks[best+1] = block{off: b.off + need, size: rem, free: true}
		b = &h.blocks[best]
		b.size = need
	}
	b.free = false
	h.used += b.size

	out, err := safecast.Conv[uint32](b.off)
	if err != nil {
		return 0, fmt.Errorf("%w: offset %d", ErrBadPointer, b.off)
	}
	return Ptr(out), nil
}

// Free releases the block at p and coalesces it with adjacent free
// neighbors.
func (h *Heap) Free(p Ptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.find(p)
	if !ok {
		return fmt.Errorf("%w: offset %d", ErrBadPointer, p)
	}
	b := &h.blocks[i]
	if b.free {
		return fmt.Errorf("%w: offset %d", ErrDoubleFree, p)
	}
	b.free = true
	h.used -= b.size

	// Coalesce with the next block first so the index stays valid.
	if i+1 < len(h.blocks) && h.blocks[i+1].free {
		h.blocks[i].size += h.blocks[i+1].size
		h.blocks = append(h.blocks[:i+1], h.blocks[i+2:]...)
	}
	if i > 0 && h.blocks[i-1].free {
		h.blocks[i-1].size += h.blocks[i].size
		h.blocks = append(h.blocks[:i], h.blocks[i+1:]...)
	}
	return nil
}

// Slice returns the bytes of the allocated block at p.
func (h *Heap) Slice(p Ptr) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.find(p)
	if !ok {
		return nil, fmt.Errorf("%w: offset %d", ErrBadPointer, p)
	}
	b := h.blocks[i]
	if b.free {
		return nil, fmt.Errorf("%w: offset %d is free", ErrBadPointer, p)
	}
	return h.region[b.off : b.off+b.size : b.off+b.size], nil
}

// Stats returns total/used/free byte counts in O(1).
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	if len(h.blocks) > 0 {
		last := h.blocks[len(h.blocks)-1]
		total = last.off + last.size - Alignment
	}
	return Stats{Total: total, Used: h.used, Free: total - h.used}
}

// find locates the block starting exactly at p.
func (h *Heap) find(p Ptr) (int, bool) {
	off := int(p)
	i := sort.Search(len(h.blocks), func(i int) bool {
		return h.blocks[i].off >= off
	})
	if i < len(h.blocks) && h.blocks[i].off == off {
		return i, true
	}
	return 0, false
}
