package scsi

import (
	"github.com/sirupsen/logrus"

	"massfs/internal/usbhost"
)

// TransferRetries bounds transfer_command's outer retry loop (§4.2).
const TransferRetries = 3

// MaxChunk is the largest single data-phase transfer: usbhost's DMA
// granule taken at its maximum multiplier, the 32 KiB buffer named in §4.1.
const MaxChunk = usbhost.MaxDataMultiplier * usbhost.DMAGranule

// BulkIn is satisfied by a claimed bulk IN endpoint, already wrapped with
// the stall-clear-retry behaviour of usbhost.BulkPostIn.
type BulkIn interface {
	Read(p []byte) (int, error)
}

// BulkOut is the OUT-direction counterpart of BulkIn.
type BulkOut interface {
	Write(p []byte) (int, error)
}

// EndpointController provides the escalation path above a single bulk_post
// retry: querying and clearing a stall, and performing a full Bulk-Only
// Reset when the transport layer decides recovery requires it.
type EndpointController interface {
	Halted(epAddr uint8) (bool, error)
	ClearHalt(epAddr uint8) error
	Reset() error
}

// Device is the SCSI transport (C2): CBW emission, data phase, CSW ingest,
// retry loop and reset recovery for a single LUN on one interface.
type Device struct {
	In     BulkIn
	Out    BulkOut
	Ctl    EndpointController
	InAddr, OutAddr uint8
	LUN    uint8

	ok  bool
	log *logrus.Entry
}

// NewDevice constructs a SCSI transport bound to an already-claimed pair of
// bulk endpoints and a reset controller. ok starts true; it is only driven
// false by an unrecoverable TransferCommand failure.
func NewDevice(in BulkIn, out BulkOut, ctl EndpointController, inAddr, outAddr, lun uint8, log *logrus.Entry) *Device {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Device{In: in, Out: out, Ctl: ctl, InAddr: inAddr, OutAddr: outAddr, LUN: lun, ok: true, log: log}
}

// Ok reports whether the device context is still usable.
func (d *Device) Ok() bool { return d.ok }

// pushCommand writes the CBW for cmd to the OUT endpoint. diff is subtracted
// from the command's declared data length when 0 < diff < dataLen, letting a
// retry resume a partially completed data phase (§4.2).
func (d *Device) pushCommand(cmd Command, diff uint32) error {
	dataLen := cmd.DataLen()
	if diff > 0 && diff < dataLen {
		dataLen -= diff
	}
	cbw, err := EncodeCBW(d.LUN, dataLen, cmd.Direction(), cmd.CDB())
	if err != nil {
		return err
	}
	// Copy the encoded CBW into a DMA-granule-backed buffer rather than
	// posting restruct's freshly-allocated slice directly, matching the
	// fixed allocation unit transfer_command's data phase uses below.
	out := usbhost.AllocDMA(1)[:len(cbw)]
	copy(out, cbw)
	if _, err := d.Out.Write(out); err != nil {
		if halted, herr := d.Ctl.Halted(d.OutAddr); herr == nil && halted {
			d.log.WithError(err).Warn("scsi: out endpoint stalled, issuing bulk-only reset")
			_ = d.Ctl.Reset()
		}
		return err
	}
	return nil
}

// readStatus reads exactly CSWSize bytes from the IN endpoint and validates
// them. A signature/tag mismatch or I/O failure forces a full reset and
// faults the context; a phase error forces a reset but leaves the context
// usable so the caller's retry loop can continue.
func (d *Device) readStatus() (CSW, error) {
	buf := usbhost.AllocDMA(1)[:CSWSize]
	n, err := d.In.Read(buf)
	if err != nil || n != CSWSize {
		_ = d.Ctl.Reset()
		d.ok = false
		if err == nil {
			err = ErrTransferFailed
		}
		return CSW{}, err
	}
	csw, err := DecodeCSW(buf)
	if err != nil || !csw.Valid() {
		_ = d.Ctl.Reset()
		d.ok = false
		return CSW{}, ErrTransferFailed
	}
	if csw.Status == StatusPhaseError {
		_ = d.Ctl.Reset()
	}
	return csw, nil
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// TransferCommand drives a complete command/data/status cycle, retrying up
// to TransferRetries times and resuming the data phase from where a failed
// attempt left off (§4.2).
func (d *Device) TransferCommand(cmd Command, buffer []byte) (CSW, error) {
	if !d.ok {
		return CSW{}, ErrFaulted
	}
	dataLen := cmd.DataLen()
	var totalTransferred uint32

	for attempt := 0; attempt < TransferRetries; attempt++ {
		d.ok = true
		if err := d.pushCommand(cmd, totalTransferred); err != nil {
			continue
		}

		if dataLen > 0 && len(buffer) > 0 {
			failed := false
			for totalTransferred < dataLen {
				remaining := int(dataLen - totalTransferred)
				avail := len(buffer) - int(totalTransferred)
				chunkSize := min3(MaxChunk, remaining, avail)
				if chunkSize <= 0 {
					break
				}
				window := buffer[totalTransferred : totalTransferred+uint32(chunkSize)]

				var n int
				var err error
				if cmd.Direction() == DirIn {
					n, err = d.In.Read(window)
					if err == nil && n == CSWSize {
						if csw, perr := DecodeCSW(window[:n]); perr == nil && csw.Valid() {
							// Early CSW: a short-data device signaled status
							// mid data-phase (S6). Treat as a clean finish.
							return csw, nil
						}
					}
				} else {
					n, err = d.Out.Write(window)
				}
				if err != nil || n < chunkSize {
					failed = true
					break
				}
				totalTransferred += uint32(n)
			}
			if failed {
				continue
			}
		}

		csw, err := d.readStatus()
		if err != nil {
			continue
		}
		if csw.Status == StatusPhaseError {
			continue
		}
		return csw, nil
	}

	d.ok = false
	return CSW{}, ErrTransferFailed
}
