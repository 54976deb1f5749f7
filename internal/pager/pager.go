// Package pager exposes the backing file as a map from page number to a
// fixed-size mutable page buffer. It caches pages in memory, allocates new
// pages (recycling the on-disk free-page list before growing the file),
// returns pages to that list, and flushes everything on close.
package pager

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"learndb/internal/dbconfig"
	"learndb/internal/dberr"
	"learndb/internal/pfile"
)

// Page is a cached, fixed-size buffer for one page of the file.
type Page struct {
	PageNum uint32
	Data    []byte
	Dirty   bool
}

// U32/SetU32 are the little-endian uint32 accessors the btree package
// uses throughout to read and write node headers and cells in place.
func (p *Page) U32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(p.Data[off : off+4])
}

func (p *Page) SetU32(off, v uint32) {
	binary.LittleEndian.PutUint32(p.Data[off:off+4], v)
	p.Dirty = true
}

// Pager is the per-database cache and allocator. It is not safe for
// concurrent use — the engine is single-writer, single-threaded by design
// (see the concurrency model), so no internal locking is necessary.
type Pager struct {
	file     *pfile.File
	pageSize uint32
	numPages uint32
	cache    map[uint32]*Page
	header   fileHeader
	log      *logrus.Logger
}

// Open opens path (creating it if new), acquiring the process-lifetime
// exclusive lock, and initializes page 0's file header on a brand-new
// file. Page 1 (the catalog root) is left zeroed; the catalog package
// formats it as an empty leaf on first use.
func Open(path string, cfg dbconfig.Config, log *logrus.Logger) (*Pager, error) {
	f, err := pfile.Open(path, cfg.PageSize)
	if err != nil {
		return nil, err
	}
	size, err := f.Size()
	if err != nil {
		f.Close()
		return nil, err
	}
	p := &Pager{
		file:     f,
		pageSize: cfg.PageSize,
		numPages: uint32(size) / cfg.PageSize,
		cache:    make(map[uint32]*Page),
		log:      log,
	}
	if p.numPages == 0 {
		page0, err := p.GetPage(0)
		if err != nil {
			f.Close()
			return nil, err
		}
		p.header = newFileHeader()
		p.header.encode(page0.Data)
		page0.Dirty = true
		log.Debug("pager: initialized new database file")
		return p, nil
	}
	page0, err := p.GetPage(0)
	if err != nil {
		f.Close()
		return nil, err
	}
	hdr, err := decodeFileHeader(page0.Data)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.header = hdr
	log.WithField("num_pages", p.numPages).Debug("pager: opened existing database file")
	return p, nil
}

// PageSize returns the configured page size.
func (p *Pager) PageSize() uint32 { return p.pageSize }

// NumPages returns the current number of pages in the file, including
// both live and free-list pages.
func (p *Pager) NumPages() uint32 { return p.numPages }

// CatalogRootPage returns the fixed root page of the catalog tree.
func (p *Pager) CatalogRootPage() uint32 { return p.header.catalogRoot }

// GetPage returns the cached buffer for page n, reading it from disk on
// first access. Requesting n == NumPages() extends the file by one page
// of zeros; requesting n > NumPages() is an error.
func (p *Pager) GetPage(n uint32) (*Page, error) {
	if page, ok := p.cache[n]; ok {
		return page, nil
	}
	if n > p.numPages {
		return nil, dberr.Corrupt("page request beyond end of file")
	}
	if n == p.numPages {
		page := &Page{PageNum: n, Data: make([]byte, p.pageSize), Dirty: true}
		p.cache[n] = page
		p.numPages++
		return page, nil
	}
	buf := make([]byte, p.pageSize)
	if err := p.file.ReadBlock(n, buf); err != nil {
		return nil, err
	}
	page := &Page{PageNum: n, Data: buf}
	p.cache[n] = page
	return page, nil
}

// AllocatePage pops the on-disk free-page-list head if non-empty;
// otherwise it grows the file by one page.
func (p *Pager) AllocatePage() (uint32, error) {
	if p.header.freeListHead != 0 {
		pgno := p.header.freeListHead
		page, err := p.GetPage(pgno)
		if err != nil {
			return 0, err
		}
		next := binary.LittleEndian.Uint32(page.Data[0:4])
		p.setFreeListHead(next)
		for i := range page.Data {
			page.Data[i] = 0
		}
		page.Dirty = true
		p.log.WithField("page", pgno).Debug("pager: allocated page from free list")
		return pgno, nil
	}
	page, err := p.GetPage(p.numPages)
	if err != nil {
		return 0, err
	}
	p.log.WithField("page", page.PageNum).Debug("pager: allocated page by extending file")
	return page.PageNum, nil
}

// ReturnPage pushes n onto the on-disk free-page list, overwriting the
// page's first 4 bytes with the previous head.
func (p *Pager) ReturnPage(n uint32) error {
	page, err := p.GetPage(n)
	if err != nil {
		return err
	}
	for i := range page.Data {
		page.Data[i] = 0
	}
	binary.LittleEndian.PutUint32(page.Data[0:4], p.header.freeListHead)
	page.Dirty = true
	p.setFreeListHead(n)
	p.log.WithField("page", n).Debug("pager: returned page to free list")
	return nil
}

func (p *Pager) setFreeListHead(n uint32) {
	p.header.freeListHead = n
	page0 := p.cache[0]
	p.header.encode(page0.Data)
	page0.Dirty = true
}

// FlushAll writes every dirty cached page to disk and syncs.
func (p *Pager) FlushAll() error {
	for n, page := range p.cache {
		if !page.Dirty {
			continue
		}
		if err := p.file.WriteBlock(n, page.Data); err != nil {
			return err
		}
		page.Dirty = false
	}
	return p.file.Sync()
}

// Close trims trailing free pages, flushes every remaining cached page
// (including the header with the updated free-list head), and releases
// the file.
func (p *Pager) Close() error {
	if err := p.truncateTrailingFree(); err != nil {
		return err
	}
	if err := p.FlushAll(); err != nil {
		return err
	}
	return p.file.Close()
}

// truncateTrailingFree trims pages at the tail of the file that are
// currently on the free-page list, best-effort: intermediate free pages
// are left tracked by the list, only a contiguous free tail is reclaimed.
func (p *Pager) truncateTrailingFree() error {
	for p.numPages > CatalogRootPage+1 {
		last := p.numPages - 1
		ok, err := p.unlinkIfFree(last)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		delete(p.cache, last)
		p.numPages--
	}
	return p.file.Truncate(p.numPages)
}

// FreePages returns every page number currently on the on-disk free-page
// list, walking it head to tail.
func (p *Pager) FreePages() ([]uint32, error) {
	var out []uint32
	cur := p.header.freeListHead
	for cur != 0 {
		out = append(out, cur)
		page, err := p.GetPage(cur)
		if err != nil {
			return nil, err
		}
		cur = binary.LittleEndian.Uint32(page.Data[0:4])
	}
	return out, nil
}

// ReclaimPage removes pgno from the free-page list if it's currently on
// it, returning whether it was found. Used when a structural collapse
// needs to reuse a specific just-freed page number (e.g. rewriting a
// tree's permanent root page after a split) instead of taking whatever
// AllocatePage would hand back.
func (p *Pager) ReclaimPage(pgno uint32) (bool, error) {
	return p.unlinkIfFree(pgno)
}

// unlinkIfFree removes pgno from the free list if present, returning
// whether it was found. Free-list blocks are typically few (bounded by
// past deletes/drops), so an O(n) walk is acceptable here.
func (p *Pager) unlinkIfFree(pgno uint32) (bool, error) {
	if p.header.freeListHead == pgno {
		page, err := p.GetPage(pgno)
		if err != nil {
			return false, err
		}
		next := binary.LittleEndian.Uint32(page.Data[0:4])
		p.setFreeListHead(next)
		return true, nil
	}
	cur := p.header.freeListHead
	for cur != 0 {
		page, err := p.GetPage(cur)
		if err != nil {
			return false, err
		}
		next := binary.LittleEndian.Uint32(page.Data[0:4])
		if next == pgno {
			nextPage, err := p.GetPage(pgno)
			if err != nil {
				return false, err
			}
			afterNext := binary.LittleEndian.Uint32(nextPage.Data[0:4])
			binary.LittleEndian.PutUint32(page.Data[0:4], afterNext)
			page.Dirty = true
			return true, nil
		}
		cur = next
	}
	return false, nil
}
