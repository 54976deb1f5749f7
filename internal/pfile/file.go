// Package pfile wraps the single OS file backing a database: opening it
// with an exclusive lock, reading/writing fixed-size blocks at byte
// offsets, and truncating. It knows nothing about pages, trees or the
// free list — that's the pager's job.
package pfile

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"learndb/internal/dberr"
)

// File is the process-exclusive handle on the backing database file.
type File struct {
	f        *os.File
	pageSize uint32
}

// Open opens (creating if necessary) the file at path and acquires an
// OS-level exclusive advisory lock for the process lifetime, the same
// family of call the pack's disk-backed engines (dungeonDB, go-database)
// use to enforce single-writer access.
func Open(path string, pageSize uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, dberr.Io("open", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, dberr.Io("flock", err)
	}
	return &File{f: f, pageSize: pageSize}, nil
}

// Size returns the current file size in bytes.
func (fl *File) Size() (int64, error) {
	fi, err := fl.f.Stat()
	if err != nil {
		return 0, dberr.Io("stat", err)
	}
	return fi.Size(), nil
}

// ReadBlock reads one pageSize-sized block at block index n into dst,
// which must have length pageSize. Reading past EOF is not an error: the
// remainder of dst is left zeroed, matching a never-written page.
func (fl *File) ReadBlock(n uint32, dst []byte) error {
	if uint32(len(dst)) != fl.pageSize {
		return dberr.Io("read-block", errShortBuf)
	}
	off := int64(n) * int64(fl.pageSize)
	read, err := fl.f.ReadAt(dst, off)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return dberr.Io("read-block", err)
	}
	for i := read; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// WriteBlock writes one pageSize-sized block at block index n from src.
func (fl *File) WriteBlock(n uint32, src []byte) error {
	if uint32(len(src)) != fl.pageSize {
		return dberr.Io("write-block", errShortBuf)
	}
	off := int64(n) * int64(fl.pageSize)
	if _, err := fl.f.WriteAt(src, off); err != nil {
		return dberr.Io("write-block", err)
	}
	return nil
}

// Truncate shrinks the file to holding exactly numPages blocks.
func (fl *File) Truncate(numPages uint32) error {
	if err := fl.f.Truncate(int64(numPages) * int64(fl.pageSize)); err != nil {
		return dberr.Io("truncate", err)
	}
	return nil
}

// Sync flushes OS buffers to stable storage.
func (fl *File) Sync() error {
	if err := fl.f.Sync(); err != nil {
		return dberr.Io("fsync", err)
	}
	return nil
}

// Close releases the exclusive lock (implicitly, via close) and closes
// the underlying descriptor.
func (fl *File) Close() error {
	if err := fl.f.Close(); err != nil {
		return dberr.Io("close", err)
	}
	return nil
}

type shortBufError struct{}

func (shortBufError) Error() string { return "buffer length does not match page size" }

var errShortBuf = shortBufError{}
