package storage

// PageType identifies the kind of content a page holds. Only Unsorted is
// exercised by this engine; the index types are defined so the header
// layout and page_type field stay stable for index pages built above
// this core later.
type PageType uint16

const (
	PageTypeUnsorted      PageType = 1
	PageTypeIndexRoot     PageType = 2
	PageTypeIndexInternal PageType = 3
	PageTypeIndexLeaf     PageType = 4
)

const (
	// PageSize is the fixed size of every page, in bytes.
	PageSize = 4096
	// HeaderSize is the size of the fixed-offset page header.
	HeaderSize = 96
	// SlotSize is the byte size of one slot array entry.
	SlotSize = 4

	offSlotCount  = 0
	offFreeStart  = 2
	offFreeEnd    = 4
	offFreeSpace  = 6
	offCanCompact = 8
	offPageNumber = 10
	offPageType   = 14
	offLeftPage   = 16
	offRightPage  = 20
	offLastLSN    = 26
)

// header is a thin, offset-aware view over a page's backing byte array.
// It never copies: every accessor reads or writes directly through data.
type header struct {
	data []byte
}

func wrapHeader(err error, field string) error {
	if err == nil {
		return nil
	}
	return &HeaderSliceSizeMismatchError{Field: field, Err: err}
}

func (h header) slotCount() (uint16, error) {
	v, err := ReadLE[uint16](h.data, offSlotCount)
	return v, wrapHeader(err, "slot_count")
}

func (h header) setSlotCount(v uint16) error {
	return wrapHeader(WriteLE(h.data, offSlotCount, v), "slot_count")
}

func (h header) freeStart() (uint16, error) {
	v, err := ReadLE[uint16](h.data, offFreeStart)
	return v, wrapHeader(err, "free_start")
}

func (h header) setFreeStart(v uint16) error {
	return wrapHeader(WriteLE(h.data, offFreeStart, v), "free_start")
}

func (h header) freeEnd() (uint16, error) {
	v, err := ReadLE[uint16](h.data, offFreeEnd)
	return v, wrapHeader(err, "free_end")
}

func (h header) setFreeEnd(v uint16) error {
	return wrapHeader(WriteLE(h.data, offFreeEnd, v), "free_end")
}

func (h header) freeSpace() (uint16, error) {
	v, err := ReadLE[uint16](h.data, offFreeSpace)
	return v, wrapHeader(err, "free_space")
}

func (h header) setFreeSpace(v uint16) error {
	return wrapHeader(WriteLE(h.data, offFreeSpace, v), "free_space")
}

func (h header) canCompact() (bool, error) {
	v, err := ReadLE[uint16](h.data, offCanCompact)
	return v != 0, wrapHeader(err, "can_compact")
}

func (h header) setCanCompact(v bool) error {
	var raw uint16
	if v {
		raw = 1
	}
	return wrapHeader(WriteLE(h.data, offCanCompact, raw), "can_compact")
}

func (h header) pageNumber() (uint32, error) {
	v, err := ReadLE[uint32](h.data, offPageNumber)
	return v, wrapHeader(err, "page_number")
}

func (h header) setPageNumber(v uint32) error {
	return wrapHeader(WriteLE(h.data, offPageNumber, v), "page_number")
}

func (h header) pageType() (PageType, error) {
	v, err := ReadLE[uint16](h.data, offPageType)
	return PageType(v), wrapHeader(err, "page_type")
}

func (h header) setPageType(v PageType) error {
	return wrapHeader(WriteLE(h.data, offPageType, uint16(v)), "page_type")
}

func (h header) leftPage() (uint32, error) {
	v, err := ReadLE[uint32](h.data, offLeftPage)
	return v, wrapHeader(err, "left_page")
}

func (h header) setLeftPage(v uint32) error {
	return wrapHeader(WriteLE(h.data, offLeftPage, v), "left_page")
}

func (h header) rightPage() (uint32, error) {
	v, err := ReadLE[uint32](h.data, offRightPage)
	return v, wrapHeader(err, "right_page")
}

func (h header) setRightPage(v uint32) error {
	return wrapHeader(WriteLE(h.data, offRightPage, v), "right_page")
}

// HeaderInfo is a decoded, read-only copy of a page's fixed header
// fields, for inspection surfaces (admin queries, the offline verifier)
// that must not reach into the raw layout themselves.
type HeaderInfo struct {
	SlotCount  uint16
	FreeStart  uint16
	FreeEnd    uint16
	FreeSpace  uint16
	CanCompact bool
	PageNumber uint32
	PageType   PageType
	LeftPage   uint32
	RightPage  uint32
	LastLSN    uint64
}

// HeaderInfo decodes the page's header fields.
func (p *Page) HeaderInfo() (HeaderInfo, error) {
	h := header{data: p.Data}
	var info HeaderInfo
	var err error
	if info.SlotCount, err = h.slotCount(); err != nil {
		return info, err
	}
	if info.FreeStart, err = h.freeStart(); err != nil {
		return info, err
	}
	if info.FreeEnd, err = h.freeEnd(); err != nil {
		return info, err
	}
	if info.FreeSpace, err = h.freeSpace(); err != nil {
		return info, err
	}
	if info.CanCompact, err = h.canCompact(); err != nil {
		return info, err
	}
	if info.PageNumber, err = h.pageNumber(); err != nil {
		return info, err
	}
	if info.PageType, err = h.pageType(); err != nil {
		return info, err
	}
	if info.LeftPage, err = h.leftPage(); err != nil {
		return info, err
	}
	if info.RightPage, err = h.rightPage(); err != nil {
		return info, err
	}
	if info.LastLSN, err = h.lastLSN(); err != nil {
		return info, err
	}
	return info, nil
}

// SlotEntry reports slot i's stored (offset, length) pair and whether
// the slot is valid. Unlike Row it does not fail on an invalid slot;
// inspection callers want to see freed slots too.
func (p *Page) SlotEntry(i int) (offset, length uint16, valid bool, err error) {
	h := header{data: p.Data}
	count, err := h.slotCount()
	if err != nil {
		return 0, 0, false, err
	}
	if i < 0 || i >= int(count) {
		return 0, 0, false, &InvalidSlotError{SlotIndex: i}
	}
	s, err := readSlot(p.Data, i)
	if err != nil {
		return 0, 0, false, err
	}
	return s.Offset, s.Length, s.valid(), nil
}

// lastLSN is reserved for the write-ahead log sequence number. Nothing
// in this engine exercises it beyond zeroing it on Initialize and
// round-tripping it through reads and writes.
func (h header) lastLSN() (uint64, error) {
	v, err := ReadLE[uint64](h.data, offLastLSN)
	return v, wrapHeader(err, "last_lsn")
}

func (h header) setLastLSN(v uint64) error {
	return wrapHeader(WriteLE(h.data, offLastLSN, v), "last_lsn")
}
