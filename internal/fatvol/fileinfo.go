package fatvol

import (
	"io/fs"
	"time"
)

// rawFATTime is implemented by the soypat/fat library's directory-entry
// stat type when it exposes the packed MS-DOS date/time fields directly,
// the same raw 16-bit pair FatFs-derived libraries store on disk rather
// than a pre-decoded time.Time. This package declares the interface itself
// since the exact concrete type backing fs.FileInfo is not confirmed
// upstream; an implementation that doesn't satisfy it falls back to
// whatever ModTime the library already computed.
type rawFATTime interface {
	RawFATTime() (date, timeField uint16)
}

// FileInfo wraps the fs.FileInfo the underlying library returns from Stat
// and ReadDir, decoding the packed FAT timestamp into a proper time.Time
// rather than trusting the library to have done so already.
type FileInfo struct {
	raw fs.FileInfo
}

func newFileInfo(raw fs.FileInfo) *FileInfo { return &FileInfo{raw: raw} }

func (fi *FileInfo) Name() string       { return fi.raw.Name() }
func (fi *FileInfo) Size() int64        { return fi.raw.Size() }
func (fi *FileInfo) Mode() fs.FileMode  { return fi.raw.Mode() }
func (fi *FileInfo) IsDir() bool        { return fi.raw.IsDir() }
func (fi *FileInfo) Sys() interface{}   { return fi.raw.Sys() }

// ModTime decodes the entry's packed FAT date/time fields when the
// underlying library exposes them, otherwise it defers to the library's
// own ModTime.
func (fi *FileInfo) ModTime() time.Time {
	if rt, ok := fi.raw.(rawFATTime); ok {
		date, timeField := rt.RawFATTime()
		return decodeFATTimestamp(date, timeField)
	}
	return fi.raw.ModTime()
}

// DirEntry wraps the fs.DirEntry ReadDir returns so its Info() method
// produces a timestamp-decoding FileInfo rather than the library's own.
type DirEntry struct {
	raw fs.DirEntry
}

func newDirEntry(raw fs.DirEntry) *DirEntry { return &DirEntry{raw: raw} }

func (e *DirEntry) Name() string               { return e.raw.Name() }
func (e *DirEntry) IsDir() bool                { return e.raw.IsDir() }
func (e *DirEntry) Type() fs.FileMode          { return e.raw.Type() }
func (e *DirEntry) Info() (fs.FileInfo, error) {
	info, err := e.raw.Info()
	if err != nil {
		return nil, err
	}
	return newFileInfo(info), nil
}
