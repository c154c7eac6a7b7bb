package storage

import "testing"

func TestReadWriteLE_RoundTrip(t *testing.T) {
	buf := make([]byte, 16)

	if err := WriteLE[uint16](buf, 0, 0x0102); err != nil {
		t.Fatalf("write u16: %v", err)
	}
	got, err := ReadLE[uint16](buf, 0)
	if err != nil {
		t.Fatalf("read u16: %v", err)
	}
	if got != 0x0102 {
		t.Fatalf("got %#x, want %#x", got, 0x0102)
	}
	if buf[0] != 0x02 || buf[1] != 0x01 {
		t.Fatalf("not little-endian: %v", buf[:2])
	}

	if err := WriteLE[uint32](buf, 4, 0x01020304); err != nil {
		t.Fatalf("write u32: %v", err)
	}
	gotU32, err := ReadLE[uint32](buf, 4)
	if err != nil {
		t.Fatalf("read u32: %v", err)
	}
	if gotU32 != 0x01020304 {
		t.Fatalf("got %#x, want %#x", gotU32, 0x01020304)
	}

	if err := WriteLE[uint64](buf, 8, 0x0102030405060708); err != nil {
		t.Fatalf("write u64: %v", err)
	}
	gotU64, err := ReadLE[uint64](buf, 8)
	if err != nil {
		t.Fatalf("read u64: %v", err)
	}
	if gotU64 != 0x0102030405060708 {
		t.Fatalf("got %#x, want %#x", gotU64, 0x0102030405060708)
	}
}

func TestReadLE_SliceSizeMismatch(t *testing.T) {
	buf := make([]byte, 4)
	if _, err := ReadLE[uint32](buf, 2); err == nil {
		t.Fatal("expected SliceSizeMismatch, got nil")
	} else if _, ok := err.(*SliceSizeMismatchError); !ok {
		t.Fatalf("expected *SliceSizeMismatchError, got %T", err)
	}
}

func TestWriteLE_SliceSizeMismatch(t *testing.T) {
	buf := make([]byte, 1)
	if err := WriteLE[uint16](buf, 0, 7); err == nil {
		t.Fatal("expected SliceSizeMismatch, got nil")
	} else if _, ok := err.(*SliceSizeMismatchError); !ok {
		t.Fatalf("expected *SliceSizeMismatchError, got %T", err)
	}
}
