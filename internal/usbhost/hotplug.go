package usbhost

import (
	"os"
	"sort"
	"strings"
	"time"
)

// HotplugWatcher adapts the teacher's sysfs-based enumeration into an
// edge-triggered change notifier. gousb/libusb expose no equivalent of the
// platform's auto-clear "interface available" event used in §4.6, so the
// drive manager's update loop instead polls the sysfs device tree listing
// and is woken only when its contents change. This trades the original's
// zero-cost blocking wait for a small fixed polling interval, which is the
// documented, intentional adaptation of the event-driven design to a
// userspace libusb backend (see DESIGN.md).
type HotplugWatcher struct {
	interval time.Duration
	last     string
}

// NewHotplugWatcher creates a watcher polling at interval.
func NewHotplugWatcher(interval time.Duration) *HotplugWatcher {
	return &HotplugWatcher{interval: interval}
}

func snapshotSysfsUSB() string {
	const sysfsDir = "/sys/bus/usb/devices"
	entries, err := os.ReadDir(sysfsDir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Changed reports whether the device tree listing differs from the last
// call, without blocking.
func (w *HotplugWatcher) Changed() bool {
	cur := snapshotSysfsUSB()
	if cur != w.last {
		w.last = cur
		return true
	}
	return false
}

// Run polls until ctx-like done channel is closed, sending on changes to ch.
// The channel is buffered by 1 so a pending notification is never lost while
// the update loop is mid-cycle.
func (w *HotplugWatcher) Run(done <-chan struct{}, ch chan<- struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if w.Changed() {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}
}
