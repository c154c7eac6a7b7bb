package storage

import "testing"

func TestPage_HeaderInfo(t *testing.T) {
	p := NewPage(PageID{FileID: 3, PageNumber: 12})
	if err := p.Initialize(p.ID, PageTypeIndexLeaf); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustInsert(t, p, bytesOf(100, 0x01))

	info, err := p.HeaderInfo()
	if err != nil {
		t.Fatalf("HeaderInfo: %v", err)
	}
	if info.SlotCount != 1 {
		t.Errorf("SlotCount = %d, want 1", info.SlotCount)
	}
	if info.FreeStart != HeaderSize+100 {
		t.Errorf("FreeStart = %d, want %d", info.FreeStart, HeaderSize+100)
	}
	if info.FreeEnd != PageSize-SlotSize-1 {
		t.Errorf("FreeEnd = %d, want %d", info.FreeEnd, PageSize-SlotSize-1)
	}
	if info.PageNumber != 12 {
		t.Errorf("PageNumber = %d, want 12", info.PageNumber)
	}
	if info.PageType != PageTypeIndexLeaf {
		t.Errorf("PageType = %d, want %d", info.PageType, PageTypeIndexLeaf)
	}
	if info.CanCompact {
		t.Error("CanCompact = true on a freshly filled page")
	}
	if info.LastLSN != 0 {
		t.Errorf("LastLSN = %d, want 0", info.LastLSN)
	}
}

func TestPage_ValidateSlotRegion(t *testing.T) {
	p := NewPage(PageID{FileID: 1, PageNumber: 0})
	if err := p.Initialize(p.ID, PageTypeUnsorted); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustInsert(t, p, bytesOf(40, 0x01))

	if err := p.ValidateSlotRegion(); err != nil {
		t.Fatalf("ValidateSlotRegion on a consistent page: %v", err)
	}

	// Claim more slots than the region between free_end and the end of
	// the page can hold.
	h := header{p.Data}
	if err := h.setSlotCount(7); err != nil {
		t.Fatalf("setSlotCount: %v", err)
	}
	err := p.ValidateSlotRegion()
	if err == nil {
		t.Fatal("ValidateSlotRegion accepted a slot_count/free_end mismatch")
	}
	if _, ok := err.(*SlotRegionSizeMismatchError); !ok {
		t.Fatalf("expected *SlotRegionSizeMismatchError, got %T", err)
	}
}

func TestPage_SlotEntry(t *testing.T) {
	p := NewPage(PageID{FileID: 1, PageNumber: 0})
	if err := p.Initialize(p.ID, PageTypeUnsorted); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mustInsert(t, p, bytesOf(50, 0x01))
	mustInsert(t, p, bytesOf(60, 0x02))
	if err := p.DeleteRow(0, false); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	off, length, valid, err := p.SlotEntry(1)
	if err != nil {
		t.Fatalf("SlotEntry(1): %v", err)
	}
	if !valid {
		t.Error("slot 1 reported invalid")
	}
	if off != HeaderSize+50 || length != 60 {
		t.Errorf("slot 1 = (%d, %d), want (%d, 60)", off, length, HeaderSize+50)
	}

	// Unlike Row, a freed slot is observable rather than an error.
	_, _, valid, err = p.SlotEntry(0)
	if err != nil {
		t.Fatalf("SlotEntry(0): %v", err)
	}
	if valid {
		t.Error("deleted slot 0 reported valid")
	}

	if _, _, _, err := p.SlotEntry(2); err == nil {
		t.Error("SlotEntry(2) accepted an out-of-range index")
	}
}
