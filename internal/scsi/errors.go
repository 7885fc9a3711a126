package scsi

import "errors"

// ErrFaulted is returned when a SCSI context has been marked not-ok by a
// prior unrecoverable failure; per §4.2 every subsequent call short-circuits
// until the device is recycled by the next hotplug pass.
var ErrFaulted = errors.New("scsi: device context faulted")

// ErrTransferFailed is returned when TransferCommand exhausts its retry
// budget without a clean CSW.
var ErrTransferFailed = errors.New("scsi: transfer failed after retries")

// ErrNotReady names a unit the media-ready handshake could not bring to a
// ready state. NewBlock does not return it; it reports that case through
// Block.Ok.
var ErrNotReady = errors.New("scsi: unit not ready")

// ErrZeroCapacity names a READ CAPACITY answer with a zero capacity or
// block size. NewBlock does not return it; it reports that case through
// Block.Ok.
var ErrZeroCapacity = errors.New("scsi: device reported zero capacity")
