package drive

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"massfs/internal/fatvol"
	"massfs/internal/scsi"
	"massfs/internal/usbhost"
)

// Drive (C5) binds one acquired USB interface to its SCSI block context and,
// once mounted, its FAT volume. A Drive is addressed externally by its
// InterfaceID and, once mounted, by its MountedIndex slot.
type Drive struct {
	InterfaceID int64
	LUN         uint8

	acquired *usbhost.Acquired
	ifaceNum uint8
	scsiDev  *scsi.Device
	block    *scsi.Block

	fatMu        sync.Mutex
	fs           *fatvol.Filesystem
	mounted      bool
	mountedIndex int
	mountName    string

	log *logrus.Entry
}

// newDrive builds the SCSI context and block layer for an acquired
// interface, per §4.5's construction sequence. It does not mount a
// filesystem or allocate a slot; Manager does that during admission.
func newDrive(acquired *usbhost.Acquired, ifaceNum, lun uint8, log *logrus.Entry) (*Drive, error) {
	in, out, ctl := acquired.Endpoints(ifaceNum)
	scsiDev := scsi.NewDevice(in, out, ctl, acquired.InAddr(), acquired.OutAddr(), lun, log)
	block := scsi.NewBlock(scsiDev, log)
	if !block.Ok() {
		return nil, ErrDriveInitializationFailure
	}

	d := &Drive{
		InterfaceID:  acquired.ID,
		LUN:          lun,
		acquired:     acquired,
		ifaceNum:     ifaceNum,
		scsiDev:      scsiDev,
		block:        block,
		mountedIndex: -1,
		log:          log.WithField("lun", lun),
	}
	return d, nil
}

// Ok reports whether the underlying SCSI context is still usable.
func (d *Drive) Ok() bool { return d.block.Ok() }

// Mounted reports whether a filesystem is currently mounted.
func (d *Drive) Mounted() bool {
	d.fatMu.Lock()
	defer d.fatMu.Unlock()
	return d.mounted
}

// MountedIndex returns the slot index this Drive occupies, or -1 if unmounted.
func (d *Drive) MountedIndex() int {
	d.fatMu.Lock()
	defer d.fatMu.Unlock()
	return d.mountedIndex
}

// MountName returns the formatted "<slot>:" mount name, or "" if unmounted.
func (d *Drive) MountName() string {
	d.fatMu.Lock()
	defer d.fatMu.Unlock()
	return d.mountName
}

// Mount mounts the FAT volume at the given already-allocated slot index.
// The slot itself is allocated by Manager before this call, since Drive
// never reaches back into Manager's slot table (§9 design constraint).
// Mount is idempotent: calling it again on an already-mounted Drive is a
// no-op that returns nil.
func (d *Drive) Mount(slot int) error {
	d.fatMu.Lock()
	defer d.fatMu.Unlock()

	if d.mounted {
		return nil
	}
	if !d.block.Ok() {
		return ErrDriveInitializationFailure
	}

	fs, err := fatvol.Mount(d.block, d.log)
	if err != nil {
		return fmt.Errorf("drive: mount lun %d: %w", d.LUN, err)
	}

	d.fs = fs
	d.mounted = true
	d.mountedIndex = slot
	d.mountName = fmt.Sprintf("%d:", slot)
	return nil
}

// Unmount closes the FAT volume and clears the mount state, but keeps the
// SCSI context alive; the interface remains tracked until Dispose is
// called during a subsequent prune.
func (d *Drive) Unmount() error {
	d.fatMu.Lock()
	defer d.fatMu.Unlock()

	if !d.mounted {
		return nil
	}
	err := d.fs.Close()
	d.fs = nil
	d.mounted = false
	d.mountedIndex = -1
	d.mountName = ""
	return err
}

// Dispose releases all resources held by this Drive. When closeUSB is true
// the underlying interface handle is reset and closed; callers pass false
// when the device has already been physically removed and touching the
// handle would only produce spurious I/O errors.
func (d *Drive) Dispose(closeUSB bool) error {
	d.fatMu.Lock()
	if d.mounted {
		d.fs.Close()
		d.fs = nil
		d.mounted = false
		d.mountedIndex = -1
		d.mountName = ""
	}
	d.fatMu.Unlock()

	if !closeUSB {
		return nil
	}
	_ = d.acquired.Reset()
	d.acquired.Close()
	return nil
}

// DoWithFAT runs f while holding this Drive's filesystem lock, giving
// callers (the service layer) exclusive access to the mounted volume for
// the duration of one operation. It returns ErrNoLUNMounted if no
// filesystem is currently mounted.
func (d *Drive) DoWithFAT(f func(fs *fatvol.Filesystem) error) error {
	d.fatMu.Lock()
	defer d.fatMu.Unlock()
	if !d.mounted {
		return ErrNoLUNMounted
	}
	return f(d.fs)
}
