package fatvol

import (
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soypat/fat"
)

// Filesystem wraps a mounted github.com/soypat/fat volume with the
// file/directory/filesystem operations §4.7 names, adding the recursive
// delete and path-normalization edge-case handling the library itself
// leaves to its caller.
type Filesystem struct {
	mu    sync.Mutex
	fs    *fat.FS
	dev   *BlockDevice
	label string
	log   *logrus.Entry
}

// Mount formats a disk-IO driver over dev and mounts the volume it finds.
func Mount(dev SectorDevice, log *logrus.Entry) (*Filesystem, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	bd := NewBlockDevice(dev)
	// The library wants a wall-clock source for directory entries it
	// creates or touches, in the same packed get_fattime() shape FatFs-
	// derived libraries use, which is why encodeFATTimestamp matches that
	// layout rather than handing back a time.Time.
	fsys, err := fat.Mount(bd, func() (uint16, uint16) { return encodeFATTimestamp(time.Now()) })
	if err != nil {
		return nil, newError(classify(err), err)
	}
	f := &Filesystem{fs: fsys, dev: bd, log: log}
	if lbl, err := fsys.Label(); err == nil {
		f.label = lbl
	}
	return f, nil
}

// normalize rejects the empty/invalid names the original implementation
// turns into FR_INVALID_NAME, and forces a single leading slash.
func normalize(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "\x00") {
		return "", newError(KindPathNotFound, errInvalidName)
	}
	clean := path.Clean("/" + name)
	return clean, nil
}

// File is the open-file handle returned by OpenFile.
type File struct {
	raw fat.File
}

func (f *File) Read(p []byte) (int, error)                 { return f.raw.Read(p) }
func (f *File) Write(p []byte) (int, error)                { return f.raw.Write(p) }
func (f *File) Seek(offset int64, whence int) (int64, error) { return f.raw.Seek(offset, whence) }
func (f *File) Close() error                                { return f.raw.Close() }
func (f *File) Stat() (fs.FileInfo, error) {
	info, err := f.raw.Stat()
	if err != nil {
		return nil, err
	}
	return newFileInfo(info), nil
}

// OpenFile opens name under the given io/fs mode flags (§4.7 C7 OpenFile),
// translating the library's out-parameter call convention into a
// constructor that returns a ready handle.
func (vol *Filesystem) OpenFile(name string, mode fs.FileMode) (*File, error) {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	clean, err := normalize(name)
	if err != nil {
		return nil, err
	}
	f := &File{}
	if err := vol.fs.OpenFile(&f.raw, clean, mode); err != nil {
		return nil, newError(classify(err), err)
	}
	return f, nil
}

// Mkdir creates a directory at name.
func (vol *Filesystem) Mkdir(name string) error {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	clean, err := normalize(name)
	if err != nil {
		return err
	}
	if err := vol.fs.Mkdir(clean); err != nil {
		return newError(classify(err), err)
	}
	return nil
}

// Stat reports directory-entry metadata for name.
func (vol *Filesystem) Stat(name string) (fs.FileInfo, error) {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	clean, err := normalize(name)
	if err != nil {
		return nil, err
	}
	info, err := vol.fs.Stat(clean)
	if err != nil {
		return nil, newError(classify(err), err)
	}
	return newFileInfo(info), nil
}

// ReadDir lists the immediate children of name.
func (vol *Filesystem) ReadDir(name string) ([]fs.DirEntry, error) {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	clean, err := normalize(name)
	if err != nil {
		return nil, err
	}
	raw, err := vol.fs.ReadDir(clean)
	if err != nil {
		return nil, newError(classify(err), err)
	}
	entries := make([]fs.DirEntry, len(raw))
	for i, e := range raw {
		entries[i] = newDirEntry(e)
	}
	return entries, nil
}

// Rename moves oldname to newname.
func (vol *Filesystem) Rename(oldname, newname string) error {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	oldClean, err := normalize(oldname)
	if err != nil {
		return err
	}
	newClean, err := normalize(newname)
	if err != nil {
		return err
	}
	if err := vol.fs.Rename(oldClean, newClean); err != nil {
		return newError(classify(err), err)
	}
	return nil
}

// Remove deletes name. If name is a non-empty directory it is removed
// depth-first: children are deleted before the directory itself, resolving
// the recursive-delete ordering Open Question the same way the original
// implementation's directory walker does.
func (vol *Filesystem) Remove(name string) error {
	vol.mu.Lock()
	defer vol.mu.Unlock()
	return vol.removeLocked(name)
}

func (vol *Filesystem) removeLocked(name string) error {
	clean, err := normalize(name)
	if err != nil {
		return err
	}

	info, err := vol.fs.Stat(clean)
	if err != nil {
		return newError(classify(err), err)
	}

	if info.IsDir() {
		entries, err := vol.fs.ReadDir(clean)
		if err != nil {
			return newError(classify(err), err)
		}
		for _, e := range entries {
			if err := vol.removeLocked(path.Join(clean, e.Name())); err != nil {
				return err
			}
		}
	}

	if err := vol.fs.Remove(clean); err != nil {
		return newError(classify(err), err)
	}
	return nil
}

// FSType enumerates the on-disk FAT variants the library can mount.
type FSType uint8

const (
	FSUnknown FSType = iota
	FSFAT12
	FSFAT16
	FSFAT32
	FSExFAT
)

// Type reports which FAT variant is mounted, as determined by the library
// during Mount.
func (vol *Filesystem) Type() FSType {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	switch vol.fs.Type() {
	case fat.TypeFAT12:
		return FSFAT12
	case fat.TypeFAT16:
		return FSFAT16
	case fat.TypeFAT32:
		return FSFAT32
	case fat.TypeExFAT:
		return FSExFAT
	default:
		return FSUnknown
	}
}

// Label reports the cached volume label.
func (vol *Filesystem) Label() string {
	vol.mu.Lock()
	defer vol.mu.Unlock()
	return vol.label
}

// SetLabel writes a new volume label, silently truncating to the 11-byte
// FAT label field length rather than erroring, matching the original
// implementation's behavior (§12 supplemented features).
func (vol *Filesystem) SetLabel(label string) error {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	const maxLabelLen = 11
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen]
	}
	if err := vol.fs.SetLabel(label); err != nil {
		return newError(classify(err), err)
	}
	vol.label = label
	return nil
}

// FreeSpace reports free and total bytes on the volume.
func (vol *Filesystem) FreeSpace() (free, total uint64, err error) {
	vol.mu.Lock()
	defer vol.mu.Unlock()

	free, total, rawErr := vol.fs.FreeSpace()
	if rawErr != nil {
		return 0, 0, newError(classify(rawErr), rawErr)
	}
	return free, total, nil
}

// Close unmounts the volume.
func (vol *Filesystem) Close() error {
	vol.mu.Lock()
	defer vol.mu.Unlock()
	if err := vol.fs.Close(); err != nil {
		return newError(classify(err), err)
	}
	return nil
}
