package syscall

import "sort"

// pageInterval is a half-open [Start,End) range of allocated WASM pages,
// the same shape the spec calls an "interval-tree of WASM pages"
// (spec.md §3 Program state). A slice kept sorted and coalesced is enough
// for the allocation counts this module deals with.
type pageInterval struct{ Start, End uint32 }

// Allocator tracks one program's allocated page set across a single
// execution (spec.md §4.4 "Memory": alloc/free/free_range).
type Allocator struct {
	intervals []pageInterval
	limit     uint32 // memory_pages limit
}

func NewAllocator(existing []pageInterval, limitPages uint32) *Allocator {
	a := &Allocator{intervals: append([]pageInterval{}, existing...), limit: limitPages}
	a.normalize()
	return a
}

func (a *Allocator) normalize() {
	sort.Slice(a.intervals, func(i, j int) bool { return a.intervals[i].Start < a.intervals[j].Start })
	out := a.intervals[:0]
	for _, iv := range a.intervals {
		if len(out) > 0 && iv.Start <= out[len(out)-1].End {
			if iv.End > out[len(out)-1].End {
				out[len(out)-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	a.intervals = out
}

func (a *Allocator) totalAllocated() uint32 {
	var n uint32
	for _, iv := range a.intervals {
		n += iv.End - iv.Start
	}
	return n
}

func (a *Allocator) contains(page uint32) bool {
	for _, iv := range a.intervals {
		if page >= iv.Start && page < iv.End {
			return true
		}
	}
	return false
}

// Alloc extends the allocation set by n pages, returning the first newly
// allocated page. Growth beyond the memory_pages limit fails recoverably
// (spec.md §4.4).
func (a *Allocator) Alloc(n uint32) (first uint32, ok bool) {
	if a.totalAllocated()+n > a.limit {
		return 0, false
	}
	// Place after the highest currently allocated page; gaps left by
	// earlier frees are not reused.
	var next uint32
	for _, iv := range a.intervals {
		if iv.End > next {
			next = iv.End
		}
	}
	a.intervals = append(a.intervals, pageInterval{Start: next, End: next + n})
	a.normalize()
	return next, true
}

// Free removes a single page; a no-op if the page was never allocated
// (spec.md §4.4: "free on unallocated page is a no-op").
func (a *Allocator) Free(page uint32) {
	a.FreeRange(page, page+1)
}

// FreeRange removes [start,end) from the allocation set.
func (a *Allocator) FreeRange(start, end uint32) {
	var next []pageInterval
	for _, iv := range a.intervals {
		if end <= iv.Start || start >= iv.End {
			next = append(next, iv)
			continue
		}
		if iv.Start < start {
			next = append(next, pageInterval{iv.Start, start})
		}
		if iv.End > end {
			next = append(next, pageInterval{end, iv.End})
		}
	}
	a.intervals = next
}

// Intervals returns the current allocation set, for UpdateAllocations notes.
func (a *Allocator) Intervals() []pageInterval { return append([]pageInterval{}, a.intervals...) }

// memoryHandler implements Handler for alloc/free/free_range.
type memoryHandler struct{ alloc *Allocator }

func NewMemoryHandler(alloc *Allocator) Handler { return &memoryHandler{alloc: alloc} }

func (h *memoryHandler) CanHandle(name string) bool {
	switch name {
	case "alloc", "free", "free_range":
		return true
	}
	return false
}

// Alloc executes the alloc(n) syscall per spec.md §4.4.
func (h *memoryHandler) Alloc(ctx *Context, n uint32) (firstPage uint32, recErr RecoverableError, err error) {
	if err := ctx.chargeFixed("alloc", 0); err != nil {
		return 0, ErrNone, err
	}
	first, ok := h.alloc.Alloc(n)
	if !ok {
		return 0, ErrLimitExceeded, nil
	}
	ctx.Emit(allocationsNote(h.alloc))
	return first, ErrNone, nil
}

// Free executes the free(page) syscall; a no-op on an unallocated page.
func (h *memoryHandler) Free(ctx *Context, page uint32) error {
	if err := ctx.chargeFixed("free", 0); err != nil {
		return err
	}
	h.alloc.Free(page)
	ctx.Emit(allocationsNote(h.alloc))
	return nil
}

// FreeRange executes the free_range(start,end) syscall.
func (h *memoryHandler) FreeRange(ctx *Context, start, end uint32) error {
	if err := ctx.chargeFixed("free_range", 0); err != nil {
		return err
	}
	h.alloc.FreeRange(start, end)
	ctx.Emit(allocationsNote(h.alloc))
	return nil
}

// allocationsNote flattens the allocator's interval set into the
// UpdateAllocations journal note (spec.md §4.5).
func allocationsNote(a *Allocator) journal.Note {
	var pages []uint32
	for _, iv := range a.intervals {
		for p := iv.Start; p < iv.End; p++ {
			pages = append(pages, p)
		}
	}
	return journal.Note{Kind: journal.UpdateAllocations, Allocations: pages}
}
