package drive

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"massfs/internal/usbhost"
)

// pollInterval is how often the background update loop checks sysfs for
// interface arrivals and departures in the absence of a genuine hotplug
// event source (see usbhost.HotplugWatcher).
const pollInterval = 500 * time.Millisecond

// candidateHost is the narrow slice of *usbhost.Host the manager depends
// on, declared so the admission/prune logic can be exercised against a fake
// without opening real USB hardware.
type candidateHost interface {
	ListCandidates(filter usbhost.InterfaceFilter) ([]usbhost.Candidate, error)
	Acquire(c usbhost.Candidate) (*usbhost.Acquired, error)
}

// Manager (C6) owns the fixed-size mount-slot pool and the set of currently
// tracked drives, serializing all admission/eviction decisions behind a
// single mutex. Drive never holds a reference back to its owning Manager;
// Manager always calls into Drive, never the other way around (§9).
type Manager struct {
	mu     sync.Mutex
	drives map[int64]*Drive
	slots  slotTable

	host   candidateHost
	filter usbhost.InterfaceFilter

	watcher *usbhost.HotplugWatcher
	done    chan struct{}
	wg      sync.WaitGroup
	started bool

	// sf coalesces concurrent ForceUpdate callers (every RPC operation
	// calls it) onto a single in-flight scan rather than running one scan
	// per waiting goroutine.
	sf singleflight.Group

	log *logrus.Entry
}

// NewManager constructs a Manager bound to host, filtering candidate
// interfaces by filter.
func NewManager(host *usbhost.Host, filter usbhost.InterfaceFilter, log *logrus.Entry) *Manager {
	return newManager(host, filter, log)
}

func newManager(host candidateHost, filter usbhost.InterfaceFilter, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		drives:  make(map[int64]*Drive),
		host:    host,
		filter:  filter,
		watcher: usbhost.NewHotplugWatcher(pollInterval),
		done:    make(chan struct{}),
		log:     log,
	}
}

// Initialize runs one synchronous update pass and starts the background
// update loop. It is idempotent: a second call is a no-op.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if err := m.updateDrives(); err != nil {
		m.log.WithError(err).Warn("drive: initial update pass failed")
	}

	m.wg.Add(1)
	go m.updateLoop()
	return nil
}

// Finalize stops the background loop and disposes every tracked drive.
func (m *Manager) Finalize() {
	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.drives {
		_ = d.Dispose(true)
		delete(m.drives, id)
	}
}

// ForceUpdate requests an immediate out-of-band update pass, used by
// service operations that must see a fresh drive list before answering.
// Concurrent callers block on, and share the result of, a single scan.
func (m *Manager) ForceUpdate() {
	_, _, _ = m.sf.Do("update", func() (interface{}, error) {
		m.updateDrivesLogged()
		return nil, nil
	})
}

func (m *Manager) updateLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if m.watcher.Changed() {
				m.updateDrivesLogged()
			}
		}
	}
}

func (m *Manager) updateDrivesLogged() {
	if err := m.updateDrives(); err != nil {
		m.log.WithError(err).Warn("drive: update pass failed")
	}
}

// updateDrives runs the two-phase prune-then-admit pass: first drop drives
// whose interface no longer appears among the current candidates, then
// acquire and mount any new candidate not already tracked (§4.6).
func (m *Manager) updateDrives() error {
	candidates, err := m.host.ListCandidates(m.filter)
	if err != nil {
		return err
	}
	present := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		present[c.ID] = true
	}

	m.mu.Lock()
	var staleDrives []*Drive
	for id, d := range m.drives {
		if present[id] {
			continue
		}
		delete(m.drives, id)
		if slot := d.MountedIndex(); slot >= 0 {
			m.slots.release(slot)
		}
		staleDrives = append(staleDrives, d)
		m.log.WithField("interface_id", id).Info("drive: interface removed")
	}
	m.mu.Unlock()

	// Dispose outside the lock: the device is already gone, so this only
	// tears down local state, but it must never run while holding the
	// manager lock (§9 lock ordering: manager lock, then a drive's lock,
	// never acquired the other way around while still holding the first).
	for _, d := range staleDrives {
		_ = d.Dispose(false)
	}

	m.mu.Lock()
	var toAdmit []usbhost.Candidate
	for _, c := range candidates {
		if _, tracked := m.drives[c.ID]; !tracked {
			toAdmit = append(toAdmit, c)
		}
	}
	m.mu.Unlock()

	for _, c := range toAdmit {
		m.admit(c)
	}
	return nil
}

// admit acquires one candidate interface, issues the Bulk-Only Reset every
// freshly claimed configuration/alt-setting needs before its first command
// (§4.6: "needs_reset" following a config change), then probes LUNs in
// order and mounts the first one that yields a FAT volume. A LUN whose SCSI
// init succeeds but whose content does not mount is disposed (closeUSB=
// false, since the USB interface itself is still good) and probing
// continues on the next LUN; a candidate that yields no mountable LUN at
// all is released and left untracked so the next pass retries it.
func (m *Manager) admit(c usbhost.Candidate) {
	acquired, err := m.host.Acquire(c)
	if err != nil {
		m.log.WithError(err).WithField("interface_id", c.ID).Warn("drive: acquire failed")
		return
	}

	reset := &usbhost.ResetController{
		Dev:      acquired.Device(),
		IfaceNum: uint8(c.IfaceNum),
		InAddr:   acquired.InAddr(),
		OutAddr:  acquired.OutAddr(),
	}
	if err := reset.Reset(); err != nil {
		m.log.WithError(err).WithField("interface_id", c.ID).Warn("drive: bulk-only reset failed")
		acquired.Close()
		return
	}

	maxLUN := usbhost.GetMaxLUN(acquired.Device(), uint8(c.IfaceNum))
	// Not all devices answer Get-Max-LUN correctly; clear any halt the probe
	// itself may have left on either bulk endpoint before touching them.
	_ = reset.ClearHalt(acquired.InAddr())
	_ = reset.ClearHalt(acquired.OutAddr())

	var mounted *Drive
	var slot int
	for lun := uint8(0); lun < maxLUN; lun++ {
		d, err := newDrive(acquired, uint8(c.IfaceNum), lun, m.log)
		if err != nil {
			continue
		}

		m.mu.Lock()
		s, ok := m.slots.allocate()
		if !ok {
			m.mu.Unlock()
			m.log.WithField("interface_id", c.ID).Warn("drive: no free mount slot")
			_ = d.Dispose(true)
			acquired = nil
			break
		}
		m.mu.Unlock()

		if err := d.Mount(s); err != nil {
			m.mu.Lock()
			m.slots.release(s)
			m.mu.Unlock()
			m.log.WithError(err).WithFields(logrus.Fields{"interface_id": c.ID, "lun": lun}).Warn("drive: lun did not mount a filesystem")
			_ = d.Dispose(false)
			continue
		}

		mounted = d
		slot = s
		break
	}

	if mounted == nil {
		if acquired != nil {
			_ = acquired.Reset()
			acquired.Close()
		}
		m.log.WithField("interface_id", c.ID).Warn("drive: no LUN mounted a filesystem")
		return
	}

	m.mu.Lock()
	m.drives[c.ID] = mounted
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"interface_id": c.ID, "mount_name": mounted.MountName()}).Info("drive: mounted")
}

// Count returns the number of currently occupied mount slots, which must
// always equal the number of tracked drives with a mounted filesystem (§8
// mount-slot invariant).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots.count()
}

// InterfaceIDs returns the interface ids of every tracked drive, in no
// particular order.
func (m *Manager) InterfaceIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.drives))
	for id := range m.drives {
		ids = append(ids, id)
	}
	return ids
}

// WithDrive runs f with the Drive identified by id, holding the manager
// lock for the whole call so the drive cannot be pruned while f runs. It
// returns ErrInvalidDriveInterfaceID if id names no tracked drive.
func (m *Manager) WithDrive(id int64, f func(*Drive) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drives[id]
	if !ok {
		return ErrInvalidDriveInterfaceID
	}
	return f(d)
}

// MountedIndexOf returns the mount slot for id, or -1 if id is untracked or
// unmounted.
func (m *Manager) MountedIndexOf(id int64) int {
	m.mu.Lock()
	d, ok := m.drives[id]
	m.mu.Unlock()
	if !ok {
		return -1
	}
	return d.MountedIndex()
}
