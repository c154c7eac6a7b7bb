package storage

import "sort"

// SlotChoiceKind distinguishes reusing an invalidated slot from appending
// a brand new one.
type SlotChoiceKind int

const (
	SlotNew SlotChoiceKind = iota
	SlotReuse
)

// SlotChoice is the slot half of an InsertionPlan.
type SlotChoice struct {
	Kind  SlotChoiceKind
	Index int // meaningful only when Kind == SlotReuse
}

// OffsetChoiceKind distinguishes an already-known byte offset from a
// placement that first requires compaction.
type OffsetChoiceKind int

const (
	OffsetExact OffsetChoiceKind = iota
	OffsetAfterCompactionFreeStart
)

// OffsetChoice is the offset half of an InsertionPlan.
type OffsetChoice struct {
	Kind OffsetChoiceKind
	Pos  int // meaningful only when Kind == OffsetExact
}

// InsertionPlan is the result of Page.PlanInsert: where a row of a given
// length would land, computed without mutating the page.
type InsertionPlan struct {
	Slot   SlotChoice
	Offset OffsetChoice
}

// Page is an in-memory view over one fixed 4096-byte slotted page. All
// mutating methods operate directly on Data; there is no separate
// in-memory representation to keep in sync.
type Page struct {
	ID   PageID
	Data []byte
}

// NewPage allocates a zeroed page for the given id. Callers must call
// Initialize before using it.
func NewPage(id PageID) *Page {
	return &Page{ID: id, Data: make([]byte, PageSize)}
}

func narrowU16(v int) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, &OverflowError{Value: v, Limit: 0xFFFF}
	}
	return uint16(v), nil
}

// checkedSub guards the header-accounting subtractions that can only go
// negative on a corrupted page (free_space smaller than what an
// operation is about to consume, free_end inside the header). The
// capacity checks on the normal path keep these from firing; when one
// does, the page is lying about its own layout.
func checkedSub(a, b int) (int, error) {
	if b > a {
		return 0, &OffsetArithmeticError{Op: "sub", A: a, B: b}
	}
	return a - b, nil
}

// Initialize zeroes the byte array and resets the header to an empty
// page of the given type. Idempotent over the full 4 KiB: calling it
// twice with the same arguments is equivalent to calling it once.
func (p *Page) Initialize(id PageID, pageType PageType) error {
	p.ID = id
	for i := range p.Data {
		p.Data[i] = 0
	}
	h := header{p.Data}
	for _, err := range []error{
		h.setSlotCount(0),
		h.setFreeStart(HeaderSize),
		h.setFreeEnd(PageSize - 1),
		h.setFreeSpace(PageSize - HeaderSize),
		h.setCanCompact(false),
		h.setPageNumber(id.PageNumber),
		h.setPageType(pageType),
	} {
		if err != nil {
			return pageErr(id, OpInitialize, err)
		}
	}
	return nil
}

func (p *Page) getValidSlot(slotIndex int) (slot, error) {
	h := header{p.Data}
	count, err := h.slotCount()
	if err != nil {
		return slot{}, err
	}
	if slotIndex < 0 || slotIndex >= int(count) {
		return slot{}, &InvalidSlotError{SlotIndex: slotIndex}
	}
	s, err := readSlot(p.Data, slotIndex)
	if err != nil {
		return slot{}, err
	}
	if !s.valid() {
		return slot{}, &InvalidSlotError{SlotIndex: slotIndex}
	}
	return s, nil
}

// Row returns the byte range a slot describes.
func (p *Page) Row(slotIndex int) ([]byte, error) {
	s, err := p.getValidSlot(slotIndex)
	if err != nil {
		return nil, pageErr(p.ID, OpReadRow, err)
	}
	return p.Data[s.Offset : s.Offset+s.Length], nil
}

// findInsertionOffset runs the offset-choice half of the insertion
// planning algorithm. When ignoreSlot >= 0, that slot's bytes are
// treated as free — used by UpdateRow's grow path to let a row relocate
// into space including its own old bytes.
func (p *Page) findInsertionOffset(rowLen int, ignoreSlot int) (OffsetChoice, error) {
	h := header{p.Data}
	slotCount, err := h.slotCount()
	if err != nil {
		return OffsetChoice{}, err
	}
	freeStart, err := h.freeStart()
	if err != nil {
		return OffsetChoice{}, err
	}
	freeEnd, err := h.freeEnd()
	if err != nil {
		return OffsetChoice{}, err
	}

	if int(freeEnd)-int(freeStart) >= rowLen {
		return OffsetChoice{Kind: OffsetExact, Pos: int(freeStart)}, nil
	}

	type extent struct{ start, end int }
	var extents []extent
	for i := 0; i < int(slotCount); i++ {
		if i == ignoreSlot {
			continue
		}
		s, err := readSlot(p.Data, i)
		if err != nil {
			return OffsetChoice{}, err
		}
		if !s.valid() {
			continue
		}
		extents = append(extents, extent{int(s.Offset), int(s.Offset) + int(s.Length)})
	}
	sort.Slice(extents, func(a, b int) bool { return extents[a].start < extents[b].start })

	for i := 0; i+1 < len(extents); i++ {
		gap := extents[i+1].start - extents[i].end
		if gap >= rowLen {
			return OffsetChoice{Kind: OffsetExact, Pos: extents[i].end}, nil
		}
	}
	if len(extents) > 0 {
		last := extents[len(extents)-1]
		if int(freeEnd)-last.end >= rowLen {
			return OffsetChoice{Kind: OffsetExact, Pos: last.end}, nil
		}
	}
	return OffsetChoice{Kind: OffsetAfterCompactionFreeStart}, nil
}

// PlanInsert decides, without mutating the page, which slot and offset
// a row of rowLen bytes would be placed at.
func (p *Page) PlanInsert(rowLen int) (InsertionPlan, error) {
	h := header{p.Data}
	slotCount, err := h.slotCount()
	if err != nil {
		return InsertionPlan{}, pageErr(p.ID, OpInsert, err)
	}
	freeSpace, err := h.freeSpace()
	if err != nil {
		return InsertionPlan{}, pageErr(p.ID, OpInsert, err)
	}

	sc := SlotChoice{Kind: SlotNew}
	for i := 0; i < int(slotCount); i++ {
		s, err := readSlot(p.Data, i)
		if err != nil {
			return InsertionPlan{}, pageErr(p.ID, OpInsert, err)
		}
		if !s.valid() {
			sc = SlotChoice{Kind: SlotReuse, Index: i}
			break
		}
	}

	required := rowLen
	if sc.Kind == SlotNew {
		required += SlotSize
	}
	if int(freeSpace) < required {
		return InsertionPlan{}, pageErr(p.ID, OpInsert, &NotEnoughSpaceError{RowLen: rowLen, FreeSpace: int(freeSpace)})
	}

	oc, err := p.findInsertionOffset(rowLen, -1)
	if err != nil {
		return InsertionPlan{}, pageErr(p.ID, OpInsert, err)
	}
	return InsertionPlan{Slot: sc, Offset: oc}, nil
}

func (p *Page) compactInternal() error {
	h := header{p.Data}
	slotCount, err := h.slotCount()
	if err != nil {
		return err
	}
	freeEnd, err := h.freeEnd()
	if err != nil {
		return err
	}
	scratchSize := int(freeEnd) + 1 - HeaderSize
	if scratchSize < 0 {
		return &SlotRegionSizeMismatchError{SlotCount: int(slotCount), RegionBytes: scratchSize}
	}
	scratch := make([]byte, scratchSize)

	writeHead := 0
	for i := 0; i < int(slotCount); i++ {
		s, err := readSlot(p.Data, i)
		if err != nil {
			return err
		}
		if !s.valid() {
			continue
		}
		copy(scratch[writeHead:writeHead+int(s.Length)], p.Data[s.Offset:int(s.Offset)+int(s.Length)])
		newOffset, err := narrowU16(HeaderSize + writeHead)
		if err != nil {
			return err
		}
		if err := writeSlot(p.Data, i, slot{Offset: newOffset, Length: s.Length}); err != nil {
			return err
		}
		writeHead += int(s.Length)
	}

	copy(p.Data[HeaderSize:HeaderSize+len(scratch)], scratch)
	if err := h.setFreeStart(uint16(HeaderSize + writeHead)); err != nil {
		return err
	}
	return h.setCanCompact(false)
}

// Compact rewrites the tuple region without holes, preserving
// slot-index identity (not physical order).
func (p *Page) Compact() error {
	if err := p.compactInternal(); err != nil {
		return pageErr(p.ID, OpCompact, err)
	}
	return nil
}

func (p *Page) insertHeapInternal(plan InsertionPlan, row []byte) (int, error) {
	h := header{p.Data}

	if plan.Offset.Kind == OffsetAfterCompactionFreeStart {
		if err := p.compactInternal(); err != nil {
			return 0, err
		}
	}

	freeStart, err := h.freeStart()
	if err != nil {
		return 0, err
	}
	start := int(freeStart)
	if plan.Offset.Kind == OffsetExact {
		start = plan.Offset.Pos
	}

	isNew := plan.Slot.Kind == SlotNew
	slotIndex := plan.Slot.Index
	if isNew {
		slotCount, err := h.slotCount()
		if err != nil {
			return 0, err
		}
		slotIndex = int(slotCount)
		if err := h.setSlotCount(slotCount + 1); err != nil {
			return 0, err
		}
		freeEnd, err := h.freeEnd()
		if err != nil {
			return 0, err
		}
		newFreeEnd, err := checkedSub(int(freeEnd), SlotSize)
		if err != nil {
			return 0, err
		}
		if err := h.setFreeEnd(uint16(newFreeEnd)); err != nil {
			return 0, err
		}
	}

	if start == int(freeStart) {
		newFreeStart, err := narrowU16(start + len(row))
		if err != nil {
			return 0, err
		}
		if err := h.setFreeStart(newFreeStart); err != nil {
			return 0, err
		}
	}

	freeSpace, err := h.freeSpace()
	if err != nil {
		return 0, err
	}
	consumed := len(row)
	if isNew {
		consumed += SlotSize
	}
	newFreeSpace, err := checkedSub(int(freeSpace), consumed)
	if err != nil {
		return 0, err
	}
	if err := h.setFreeSpace(uint16(newFreeSpace)); err != nil {
		return 0, err
	}

	copy(p.Data[start:start+len(row)], row)
	offU16, err := narrowU16(start)
	if err != nil {
		return 0, err
	}
	lenU16, err := narrowU16(len(row))
	if err != nil {
		return 0, err
	}
	if err := writeSlot(p.Data, slotIndex, slot{Offset: offU16, Length: lenU16}); err != nil {
		return 0, err
	}
	return slotIndex, nil
}

// InsertHeap applies a previously-computed plan, writing row's bytes
// into the page and returning the slot index it landed at.
func (p *Page) InsertHeap(plan InsertionPlan, row []byte) (int, error) {
	idx, err := p.insertHeapInternal(plan, row)
	if err != nil {
		return 0, pageErr(p.ID, OpInsert, err)
	}
	return idx, nil
}

func (p *Page) deleteRowInternal(slotIndex int, compactRequested bool) error {
	h := header{p.Data}
	target, err := p.getValidSlot(slotIndex)
	if err != nil {
		return err
	}
	slotCount, err := h.slotCount()
	if err != nil {
		return err
	}

	topOffset, topEnd, topIdx := -1, -1, -1
	secondOffset, secondEnd := -1, -1
	for i := 0; i < int(slotCount); i++ {
		s, err := readSlot(p.Data, i)
		if err != nil {
			return err
		}
		if !s.valid() {
			continue
		}
		off, end := int(s.Offset), int(s.Offset)+int(s.Length)
		switch {
		case off > topOffset:
			secondOffset, secondEnd = topOffset, topEnd
			topOffset, topEnd, topIdx = off, end, i
		case off > secondOffset:
			secondOffset, secondEnd = off, end
		}
	}

	if topIdx == slotIndex {
		newFreeStart := HeaderSize
		if secondEnd >= 0 {
			newFreeStart = secondEnd
		}
		fs, err := narrowU16(newFreeStart)
		if err != nil {
			return err
		}
		if err := h.setFreeStart(fs); err != nil {
			return err
		}
	} else {
		if err := h.setCanCompact(true); err != nil {
			return err
		}
	}

	if err := writeSlot(p.Data, slotIndex, slot{0, 0}); err != nil {
		return err
	}

	freeSpace, err := h.freeSpace()
	if err != nil {
		return err
	}
	newFreeSpace, err := narrowU16(int(freeSpace) + int(target.Length))
	if err != nil {
		return err
	}
	if err := h.setFreeSpace(newFreeSpace); err != nil {
		return err
	}

	if compactRequested {
		return p.compactInternal()
	}
	return nil
}

// DeleteRow invalidates a slot. If it held the physically-last (highest
// offset) valid row, free_start shifts back without needing compaction;
// otherwise can_compact is set. If compactRequested, compaction runs
// immediately afterward regardless.
func (p *Page) DeleteRow(slotIndex int, compactRequested bool) error {
	if err := p.deleteRowInternal(slotIndex, compactRequested); err != nil {
		return pageErr(p.ID, OpDelete, err)
	}
	return nil
}

func (p *Page) updateRowInternal(slotIndex int, newRow []byte) error {
	h := header{p.Data}
	old, err := p.getValidSlot(slotIndex)
	if err != nil {
		return err
	}
	oldLen := int(old.Length)
	newLen := len(newRow)

	freeSpace, err := h.freeSpace()
	if err != nil {
		return err
	}
	available := int(freeSpace) + oldLen
	if newLen > available {
		return &NotEnoughSpaceError{RowLen: newLen, FreeSpace: int(freeSpace)}
	}

	if newLen <= oldLen {
		copy(p.Data[old.Offset:int(old.Offset)+newLen], newRow)
		lenU16, err := narrowU16(newLen)
		if err != nil {
			return err
		}
		if err := writeSlot(p.Data, slotIndex, slot{Offset: old.Offset, Length: lenU16}); err != nil {
			return err
		}
		if newLen != oldLen {
			// Shrinking opens a hole in the tuple region that is not
			// tracked by can_compact; free_space still accounts for it.
			delta := newLen - oldLen
			updated, err := narrowU16(int(freeSpace) - delta)
			if err != nil {
				return err
			}
			if err := h.setFreeSpace(updated); err != nil {
				return err
			}
		}
		return nil
	}

	// Grow.
	oc, err := p.findInsertionOffset(newLen, slotIndex)
	if err != nil {
		return err
	}
	if oc.Kind == OffsetExact {
		pos := oc.Pos
		copy(p.Data[pos:pos+newLen], newRow)
		posU16, err := narrowU16(pos)
		if err != nil {
			return err
		}
		lenU16, err := narrowU16(newLen)
		if err != nil {
			return err
		}
		if err := writeSlot(p.Data, slotIndex, slot{Offset: posU16, Length: lenU16}); err != nil {
			return err
		}
		freeStart, err := h.freeStart()
		if err != nil {
			return err
		}
		if pos == int(freeStart) {
			fs, err := narrowU16(pos + newLen)
			if err != nil {
				return err
			}
			if err := h.setFreeStart(fs); err != nil {
				return err
			}
		}
		delta := newLen - oldLen
		updated, err := checkedSub(int(freeSpace), delta)
		if err != nil {
			return err
		}
		return h.setFreeSpace(uint16(updated))
	}

	// AfterCompactionFreeStart: delete the old row with compaction, then
	// insert the grown row at the resulting free_start, reusing the same
	// slot index rather than going through the general slot-choice scan.
	if err := p.deleteRowInternal(slotIndex, true); err != nil {
		return err
	}
	freeStart, err := h.freeStart()
	if err != nil {
		return err
	}
	pos := int(freeStart)
	copy(p.Data[pos:pos+newLen], newRow)
	posU16, err := narrowU16(pos)
	if err != nil {
		return err
	}
	lenU16, err := narrowU16(newLen)
	if err != nil {
		return err
	}
	if err := writeSlot(p.Data, slotIndex, slot{Offset: posU16, Length: lenU16}); err != nil {
		return err
	}
	fs, err := narrowU16(pos + newLen)
	if err != nil {
		return err
	}
	if err := h.setFreeStart(fs); err != nil {
		return err
	}
	postDeleteFreeSpace, err := h.freeSpace()
	if err != nil {
		return err
	}
	updated, err := checkedSub(int(postDeleteFreeSpace), newLen)
	if err != nil {
		return err
	}
	return h.setFreeSpace(uint16(updated))
}

// UpdateRow replaces a slot's bytes, shrinking, relocating or growing in
// place as needed.
func (p *Page) UpdateRow(slotIndex int, newRow []byte) error {
	if err := p.updateRowInternal(slotIndex, newRow); err != nil {
		return pageErr(p.ID, OpUpdate, err)
	}
	return nil
}
