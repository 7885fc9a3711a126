// Package service implements the five-operation remote surface (C8) that
// clients use to enumerate mounted drives and operate on their
// filesystems. Every operation forces a fresh drive-list update before
// acting, matching the original implementation's "always re-scan before
// answering" contract.
package service

import (
	"io/fs"

	"github.com/sirupsen/logrus"

	"massfs/internal/drive"
	"massfs/internal/fatvol"
)

// driveStore is the narrow slice of *drive.Manager the service depends on,
// declared so the ordinal operations can be exercised against a fake
// drive set without a real USB manager.
type driveStore interface {
	ForceUpdate()
	Count() int
	InterfaceIDs() []int64
	WithDrive(id int64, f func(*drive.Drive) error) error
}

// Service binds the drive manager to the ordinal operation set.
type Service struct {
	manager driveStore
	log     *logrus.Entry
}

// New constructs a Service over manager.
func New(manager *drive.Manager, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{manager: manager, log: log}
}

// ListMountedDrives is operation 0: it copies up to len(out) interface ids
// of currently tracked drives into out and returns how many it copied,
// which is at most len(out). MountedDriveCount reports the total.
func (s *Service) ListMountedDrives(out []int64) (n int) {
	s.manager.ForceUpdate()
	ids := s.manager.InterfaceIDs()
	n = copy(out, ids)
	return n
}

// MountedDriveCount reports how many interface ids ListMountedDrives would
// report in total, for callers sizing their buffer.
func (s *Service) MountedDriveCount() int {
	s.manager.ForceUpdate()
	return s.manager.Count()
}

// GetFilesystemType is operation 1.
func (s *Service) GetFilesystemType(id int64) (fatvol.FSType, error) {
	s.manager.ForceUpdate()
	var kind fatvol.FSType
	err := s.manager.WithDrive(id, func(d *drive.Drive) error {
		return d.DoWithFAT(func(vol *fatvol.Filesystem) error {
			kind = vol.Type()
			return nil
		})
	})
	return kind, err
}

// GetLabel is operation 2.
func (s *Service) GetLabel(id int64) (string, error) {
	s.manager.ForceUpdate()
	var label string
	err := s.manager.WithDrive(id, func(d *drive.Drive) error {
		return d.DoWithFAT(func(vol *fatvol.Filesystem) error {
			label = vol.Label()
			return nil
		})
	})
	return label, err
}

// SetLabel is operation 3. An empty label clears it.
func (s *Service) SetLabel(id int64, label string) error {
	s.manager.ForceUpdate()
	return s.manager.WithDrive(id, func(d *drive.Drive) error {
		return d.DoWithFAT(func(vol *fatvol.Filesystem) error {
			return vol.SetLabel(label)
		})
	})
}

// Filesystem is the remote filesystem handle operation 4 hands back: a
// thin, Drive-bound view over fatvol.Filesystem that keeps acquiring the
// per-volume lock for each call instead of holding it across the whole
// session.
type Filesystem struct {
	manager driveStore
	id      int64
}

// OpenFilesystem is operation 4.
func (s *Service) OpenFilesystem(id int64) (*Filesystem, error) {
	s.manager.ForceUpdate()
	err := s.manager.WithDrive(id, func(d *drive.Drive) error {
		return d.DoWithFAT(func(*fatvol.Filesystem) error { return nil })
	})
	if err != nil {
		return nil, err
	}
	return &Filesystem{manager: s.manager, id: id}, nil
}

func (f *Filesystem) with(fn func(*fatvol.Filesystem) error) error {
	return f.manager.WithDrive(f.id, func(d *drive.Drive) error {
		return d.DoWithFAT(fn)
	})
}

func (f *Filesystem) OpenFile(name string, mode fs.FileMode) (*fatvol.File, error) {
	var file *fatvol.File
	err := f.with(func(vol *fatvol.Filesystem) error {
		var openErr error
		file, openErr = vol.OpenFile(name, mode)
		return openErr
	})
	return file, err
}

func (f *Filesystem) Mkdir(name string) error {
	return f.with(func(vol *fatvol.Filesystem) error { return vol.Mkdir(name) })
}

func (f *Filesystem) Remove(name string) error {
	return f.with(func(vol *fatvol.Filesystem) error { return vol.Remove(name) })
}

func (f *Filesystem) Rename(oldname, newname string) error {
	return f.with(func(vol *fatvol.Filesystem) error { return vol.Rename(oldname, newname) })
}

func (f *Filesystem) Stat(name string) (fs.FileInfo, error) {
	var info fs.FileInfo
	err := f.with(func(vol *fatvol.Filesystem) error {
		var statErr error
		info, statErr = vol.Stat(name)
		return statErr
	})
	return info, err
}

func (f *Filesystem) ReadDir(name string) ([]fs.DirEntry, error) {
	var entries []fs.DirEntry
	err := f.with(func(vol *fatvol.Filesystem) error {
		var readErr error
		entries, readErr = vol.ReadDir(name)
		return readErr
	})
	return entries, err
}

func (f *Filesystem) FreeSpace() (free, total uint64, err error) {
	err = f.with(func(vol *fatvol.Filesystem) error {
		var spaceErr error
		free, total, spaceErr = vol.FreeSpace()
		return spaceErr
	})
	return free, total, err
}
