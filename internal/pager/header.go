package pager

import (
	"bytes"
	"encoding/binary"

	"learndb/internal/dberr"
)

// fileHeader is the layout of page 0: a 16-byte magic/version string, the
// on-disk free-page-list head, the catalog's root page (always 1), and
// reserved zeros, per the on-disk format in the spec.
const (
	magicOffset     = 0
	magicSize       = 16
	freeListOffset  = 16
	catalogOffset   = 20
	reservedOffset  = 24
	reservedSize    = 76 // pads the header out to byte 100
	fileHeaderBytes = reservedOffset + reservedSize

	// CatalogRootPage is the fixed root page of the catalog tree.
	CatalogRootPage = 1
)

var magic = append([]byte("learndb v1\x00"), make([]byte, magicSize-len("learndb v1\x00"))...)

type fileHeader struct {
	freeListHead uint32
	catalogRoot  uint32
}

func newFileHeader() fileHeader {
	return fileHeader{freeListHead: 0, catalogRoot: CatalogRootPage}
}

func (h fileHeader) encode(page []byte) {
	for i := range page {
		page[i] = 0
	}
	copy(page[magicOffset:magicOffset+magicSize], magic)
	binary.LittleEndian.PutUint32(page[freeListOffset:freeListOffset+4], h.freeListHead)
	binary.LittleEndian.PutUint32(page[catalogOffset:catalogOffset+4], h.catalogRoot)
}

func decodeFileHeader(page []byte) (fileHeader, error) {
	if len(page) < fileHeaderBytes {
		return fileHeader{}, dberr.Corrupt("page 0 shorter than the file header")
	}
	if !bytes.Equal(page[magicOffset:magicOffset+magicSize], magic) {
		return fileHeader{}, dberr.Corrupt("page 0 magic/version mismatch")
	}
	h := fileHeader{
		freeListHead: binary.LittleEndian.Uint32(page[freeListOffset : freeListOffset+4]),
		catalogRoot:  binary.LittleEndian.Uint32(page[catalogOffset : catalogOffset+4]),
	}
	if h.catalogRoot != CatalogRootPage {
		return fileHeader{}, dberr.Corrupt("catalog root page is not 1")
	}
	return h, nil
}
