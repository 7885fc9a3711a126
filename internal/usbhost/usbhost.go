// Package usbhost wraps the platform USB host stack (github.com/google/gousb,
// a cgo binding over libusb) behind the narrow set of operations the SCSI
// transport and drive manager actually need: interface enumeration by class
// filter, endpoint claiming, control transfers, and bulk posts with stall
// recovery.
package usbhost

import (
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

// DMAGranule is the allocation unit for transfer buffers. The teacher's
// ioctl layer required page-aligned memory for USBDEVFS_SUBMITURB; gousb
// hides the actual DMA mapping behind libusb, but callers still allocate in
// multiples of this granule so that buffer sizing logic translates directly.
const DMAGranule = 0x1000

// MaxDataMultiplier bounds the data buffer at 8 * DMAGranule (32 KiB), the
// largest single chunk a transfer_command data phase will move at once.
const MaxDataMultiplier = 8

// ControlSettleDelay is paused after every control transfer to the device,
// matching slow Mass Storage bridges that need time to process class
// requests before the next one arrives.
const ControlSettleDelay = 120 * time.Millisecond

// AllocDMA returns a zeroed buffer sized multiplier*DMAGranule bytes.
func AllocDMA(multiplier int) []byte {
	if multiplier < 1 {
		multiplier = 1
	}
	return make([]byte, multiplier*DMAGranule)
}

// ControlPoster is the subset of *gousb.Device used for class and standard
// control requests. Declaring it narrowly lets control.go be exercised
// against a fake in tests without opening real hardware.
type ControlPoster interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// Host owns a libusb context and enumerates Mass Storage interfaces.
type Host struct {
	ctx *gousb.Context
	log *logrus.Entry
}

// NewHost opens a libusb context. Callers must call Close when finished.
func NewHost(log *logrus.Entry) *Host {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Host{ctx: gousb.NewContext(), log: log}
}

// Close releases the underlying libusb context.
func (h *Host) Close() error {
	return h.ctx.Close()
}

// InterfaceFilter matches the Mass Storage Bulk-Only Transport class triple.
type InterfaceFilter struct {
	Class    gousb.Class
	SubClass gousb.Class
	Protocol gousb.Protocol
}

// MassStorageBulkOnly is the filter C6's data model names: class 0x08,
// subclass 0x06 (SCSI transparent), protocol 0x50 (Bulk-Only).
var MassStorageBulkOnly = InterfaceFilter{
	Class:    gousb.ClassMassStorage,
	SubClass: 0x06,
	Protocol: 0x50,
}

// Candidate is a not-yet-claimed interface matching a filter, carrying
// enough information for the drive manager to decide whether it already
// tracks this interface and, if not, to acquire it.
type Candidate struct {
	// ID is a stable small integer synthesized from bus/address/interface
	// number. gousb exposes no platform interface-id of its own; this
	// substitutes for the spec's "stable small integer assigned by the
	// platform".
	ID         int64
	Bus        int
	Address    int
	ConfigNum  int
	IfaceNum   int
	deviceDesc *gousb.DeviceDesc
}

func interfaceID(bus, addr, iface int) int64 {
	return int64(bus)<<32 | int64(addr)<<16 | int64(iface)
}

// ListCandidates enumerates every currently-present interface matching
// filter, across all attached devices, without claiming anything.
func (h *Host) ListCandidates(filter InterfaceFilter) ([]Candidate, error) {
	var candidates []Candidate
	// OpenDevices's filter callback is invoked per device; returning false
	// tells gousb not to leave the device open, so devices that match no
	// interface are closed immediately and devices that do match are
	// reopened individually by Acquire.
	devs, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, cfg := range desc.Configs {
			for _, ifc := range cfg.Interfaces {
				for _, alt := range ifc.AltSettings {
					if alt.Class == filter.Class && alt.SubClass == filter.SubClass && alt.Protocol == filter.Protocol {
						candidates = append(candidates, Candidate{
							ID:         interfaceID(desc.Bus, desc.Address, ifc.Number),
							Bus:        desc.Bus,
							Address:    desc.Address,
							ConfigNum:  cfg.Number,
							IfaceNum:   ifc.Number,
							deviceDesc: desc,
						})
					}
				}
			}
		}
		return false
	})
	for _, d := range devs {
		_ = d.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("usbhost: enumerate devices: %w", err)
	}
	return candidates, nil
}

// Acquired is a claimed Mass Storage interface with its two bulk endpoints
// open and ready for BOT traffic.
type Acquired struct {
	ID   int64
	dev  *gousb.Device
	cfg  *gousb.Config
	ifc  *gousb.Interface
	In   *gousb.InEndpoint
	Out  *gousb.OutEndpoint
	log  *logrus.Entry
}

// Device exposes the underlying *gousb.Device for control transfers.
func (a *Acquired) Device() *gousb.Device { return a.dev }

// InAddr and OutAddr return the endpoint addresses actually opened, needed
// to target Clear-Feature(HALT) at the right endpoint.
func (a *Acquired) InAddr() uint8  { return uint8(a.In.Desc.Address) }
func (a *Acquired) OutAddr() uint8 { return uint8(a.Out.Desc.Address) }

// Close releases the interface, configuration and device, in that order.
func (a *Acquired) Close() {
	if a.ifc != nil {
		a.ifc.Close()
	}
	if a.cfg != nil {
		a.cfg.Close()
	}
	if a.dev != nil {
		_ = a.dev.Close()
	}
}

// Reset resets the underlying device at the USB bus level.
func (a *Acquired) Reset() error {
	return a.dev.Reset()
}

// Acquire opens the device behind a Candidate, selects its configuration,
// claims alternate-setting 0 of the interface, and opens the first bulk IN
// and bulk OUT endpoints it finds — mirroring update_drives's endpoint
// discovery in §4.6.
func (h *Host) Acquire(c Candidate) (*Acquired, error) {
	devs, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == c.Bus && desc.Address == c.Address
	})
	if err != nil || len(devs) == 0 {
		return nil, fmt.Errorf("usbhost: device %d:%d no longer present: %w", c.Bus, c.Address, err)
	}
	dev := devs[0]

	cfg, err := dev.Config(c.ConfigNum)
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("usbhost: select config %d: %w", c.ConfigNum, err)
	}

	ifc, err := cfg.Interface(c.IfaceNum, 0)
	if err != nil {
		cfg.Close()
		_ = dev.Close()
		return nil, fmt.Errorf("usbhost: claim interface %d: %w", c.IfaceNum, err)
	}

	var inEP *gousb.InEndpoint
	var outEP *gousb.OutEndpoint
	for _, epDesc := range ifc.Setting.Endpoints {
		if epDesc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && inEP == nil {
			if ep, err := ifc.InEndpoint(epDesc.Number); err == nil {
				inEP = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionOut && outEP == nil {
			if ep, err := ifc.OutEndpoint(epDesc.Number); err == nil {
				outEP = ep
			}
		}
	}
	if inEP == nil || outEP == nil {
		ifc.Close()
		cfg.Close()
		_ = dev.Close()
		return nil, fmt.Errorf("usbhost: interface %d missing a bulk in/out endpoint pair", c.IfaceNum)
	}

	return &Acquired{ID: c.ID, dev: dev, cfg: cfg, ifc: ifc, In: inEP, Out: outEP, log: h.log}, nil
}
