package drive

import "errors"

// ErrInvalidDriveInterfaceID is returned when a caller's interface-id is not
// currently mounted (§7).
var ErrInvalidDriveInterfaceID = errors.New("drive: interface id is not a mounted drive")

// ErrDriveUnavailable is returned when a drive was mounted but has been
// disconnected before the request completed.
var ErrDriveUnavailable = errors.New("drive: drive disconnected mid-request")

// ErrDriveInitializationFailure is returned when the SCSI handshake failed
// and the drive is not usable.
var ErrDriveInitializationFailure = errors.New("drive: scsi initialization failed")

// ErrNoLUNMounted is returned by Drive.DoWithFAT when the Drive has no
// mounted filesystem.
var ErrNoLUNMounted = errors.New("drive: no LUN mounted a filesystem")
