// Command pagestore-verify walks a page file offline and re-checks the
// slotted-page invariants on every page: header/slot-array agreement,
// free-region bounds, slot extents, and free-space accounting. It is a
// read-only tool; it reports, it never repairs.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mnohosten/pagestore/pkg/storage"
)

// IssueType classifies one verification finding.
type IssueType string

const (
	IssueTruncatedPage      IssueType = "truncated_page"
	IssueHeaderUnreadable   IssueType = "header_unreadable"
	IssueSlotRegionMismatch IssueType = "slot_region_mismatch"
	IssueFreeBounds         IssueType = "free_bounds"
	IssueSlotOutOfBounds    IssueType = "slot_out_of_bounds"
	IssueOverlappingSlots   IssueType = "overlapping_slots"
	IssueAccountingMismatch IssueType = "accounting_mismatch"
	IssueUnknownPageType    IssueType = "unknown_page_type"
)

// Issue is one finding on one page.
type Issue struct {
	Type       IssueType `json:"type"`
	PageNumber uint32    `json:"page_number"`
	Detail     string    `json:"detail"`
}

// Report summarises a verification run over one file.
type Report struct {
	Path         string    `json:"path"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	PagesScanned int       `json:"pages_scanned"`
	ZeroPages    int       `json:"zero_pages"`
	Issues       []Issue   `json:"issues"`
	Healthy      bool      `json:"healthy"`
}

func main() {
	path := flag.String("file", "", "Path to the page file to verify")
	jsonOut := flag.Bool("json", false, "Emit the report as JSON")
	verbose := flag.Bool("verbose", false, "Print every issue, not just the first 10")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: pagestore-verify -file <path> [-json] [-verbose]")
		os.Exit(2)
	}

	report, err := verifyFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify %s: %v\n", *path, err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
	} else {
		printReport(report, *verbose)
	}

	if !report.Healthy {
		os.Exit(1)
	}
}

func verifyFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	report := &Report{Path: path, StartedAt: time.Now()}

	buf := make([]byte, storage.PageSize)
	for pageNumber := uint32(0); ; pageNumber++ {
		n, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			report.Issues = append(report.Issues, Issue{
				Type:       IssueTruncatedPage,
				PageNumber: pageNumber,
				Detail:     fmt.Sprintf("file ends %d bytes into the page", n),
			})
			report.PagesScanned++
			break
		}
		if err != nil {
			return nil, err
		}

		report.PagesScanned++
		if isZeroPage(buf) {
			report.ZeroPages++
			continue
		}
		report.Issues = append(report.Issues, verifyPage(pageNumber, buf)...)
	}

	report.FinishedAt = time.Now()
	report.Healthy = len(report.Issues) == 0
	return report, nil
}

// isZeroPage reports an all-zero page: a hole left by positional writes
// past the previous end of the file, legal and skipped.
func isZeroPage(data []byte) bool {
	return bytes.Count(data, []byte{0}) == len(data)
}

func verifyPage(pageNumber uint32, data []byte) []Issue {
	var issues []Issue
	fail := func(t IssueType, format string, args ...interface{}) {
		issues = append(issues, Issue{Type: t, PageNumber: pageNumber, Detail: fmt.Sprintf(format, args...)})
	}

	page := storage.NewPage(storage.PageID{PageNumber: pageNumber})
	copy(page.Data, data)

	info, err := page.HeaderInfo()
	if err != nil {
		fail(IssueHeaderUnreadable, "%v", err)
		return issues
	}

	if info.PageType < storage.PageTypeUnsorted || info.PageType > storage.PageTypeIndexLeaf {
		fail(IssueUnknownPageType, "page_type = %d", info.PageType)
	}

	if err := page.ValidateSlotRegion(); err != nil {
		fail(IssueSlotRegionMismatch, "%v", err)
		// The slot array can't be trusted past this point.
		return issues
	}
	freeEnd := int(info.FreeEnd)
	slotCount := int(info.SlotCount)

	freeStart := int(info.FreeStart)
	if freeStart < storage.HeaderSize || freeStart > freeEnd+1 {
		fail(IssueFreeBounds, "free_start = %d, free_end = %d", freeStart, freeEnd)
	}

	// Collect valid slot extents, bounds-checking each.
	type extent struct {
		slot       int
		start, end int
	}
	var extents []extent
	var usedBytes int
	for i := 0; i < slotCount; i++ {
		offset, length, valid, err := page.SlotEntry(i)
		if err != nil {
			fail(IssueHeaderUnreadable, "slot %d: %v", i, err)
			continue
		}
		if !valid {
			continue
		}
		start, end := int(offset), int(offset)+int(length)
		if start < storage.HeaderSize || end > freeStart {
			fail(IssueSlotOutOfBounds, "slot %d spans [%d, %d), tuple region is [%d, %d)",
				i, start, end, storage.HeaderSize, freeStart)
			continue
		}
		extents = append(extents, extent{slot: i, start: start, end: end})
		usedBytes += int(length)
	}

	for i := 0; i < len(extents); i++ {
		for j := i + 1; j < len(extents); j++ {
			a, b := extents[i], extents[j]
			if a.start < b.end && b.start < a.end {
				fail(IssueOverlappingSlots, "slot %d [%d, %d) overlaps slot %d [%d, %d)",
					a.slot, a.start, a.end, b.slot, b.start, b.end)
			}
		}
	}

	// Every byte of the payload region is accounted for: live rows,
	// free space (contiguous plus holes), and the slot array itself.
	total := usedBytes + int(info.FreeSpace) + storage.SlotSize*slotCount
	if total != storage.PageSize-storage.HeaderSize {
		fail(IssueAccountingMismatch,
			"rows (%d) + free_space (%d) + slot array (%d) = %d, want %d",
			usedBytes, info.FreeSpace, storage.SlotSize*slotCount, total,
			storage.PageSize-storage.HeaderSize)
	}

	return issues
}

func printReport(report *Report, verbose bool) {
	fmt.Printf("%s: %d pages scanned, %d zero pages, %d issues\n",
		report.Path, report.PagesScanned, report.ZeroPages, len(report.Issues))

	if verbose || len(report.Issues) <= 10 {
		for _, issue := range report.Issues {
			fmt.Printf("  page %d: %s: %s\n", issue.PageNumber, issue.Type, issue.Detail)
		}
	} else {
		for _, issue := range report.Issues[:10] {
			fmt.Printf("  page %d: %s: %s\n", issue.PageNumber, issue.Type, issue.Detail)
		}
		fmt.Printf("  ... %d more (run with -verbose)\n", len(report.Issues)-10)
	}

	if report.Healthy {
		fmt.Println("healthy")
	}
}
