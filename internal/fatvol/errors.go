package fatvol

import "errors"

// Kind enumerates the filesystem-error taxonomy this package exposes to
// callers, collapsing the FAT library's lower-level fault codes onto the
// vocabulary this system's clients expect (§4.7).
type Kind int

const (
	KindOK Kind = iota
	KindPathNotFound
	KindAccessDenied
	KindExists
	KindDirNotEmpty
	KindDiskFull
	KindInvalidParameter
	KindNotReady
	KindWriteProtected
	KindUnknown
)

// Error wraps a Kind with the underlying library error, if any.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "fatvol: " + kindString(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func kindString(k Kind) string {
	switch k {
	case KindOK:
		return "ok"
	case KindPathNotFound:
		return "path not found"
	case KindAccessDenied:
		return "access denied"
	case KindExists:
		return "already exists"
	case KindDirNotEmpty:
		return "directory not empty"
	case KindDiskFull:
		return "disk full"
	case KindInvalidParameter:
		return "invalid parameter"
	case KindNotReady:
		return "not ready"
	case KindWriteProtected:
		return "write protected"
	default:
		return "unknown error"
	}
}

func newError(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

// classify maps an error onto a Kind by matching it with errors.Is against
// this package's own sentinels below and errBlockDeviceNotReady: no-file,
// no-path and invalid-name all become KindPathNotFound. Errors from the
// underlying FAT library that do not wrap one of these sentinels are not
// inspected further and become KindUnknown.
func classify(err error) Kind {
	if err == nil {
		return KindOK
	}
	switch {
	case errors.Is(err, errNoFile), errors.Is(err, errNoPath), errors.Is(err, errInvalidName):
		return KindPathNotFound
	case errors.Is(err, errDenied), errors.Is(err, errWriteProtected):
		return KindAccessDenied
	case errors.Is(err, errExist):
		return KindExists
	case errors.Is(err, errNotEmpty):
		return KindDirNotEmpty
	case errors.Is(err, errDiskFull):
		return KindDiskFull
	case errors.Is(err, errNotReady), errors.Is(err, errBlockDeviceNotReady):
		return KindNotReady
	case errors.Is(err, errInvalidParameter):
		return KindInvalidParameter
	default:
		return KindUnknown
	}
}

// Sentinel faults this package itself raises when validating arguments
// before handing them to the underlying library, modeled on the original
// implementation's FRESULT vocabulary (§4.7 edge cases).
var (
	errNoFile            = errors.New("fatvol: no such file")
	errNoPath            = errors.New("fatvol: no such path")
	errInvalidName       = errors.New("fatvol: invalid name")
	errDenied            = errors.New("fatvol: access denied")
	errExist             = errors.New("fatvol: already exists")
	errNotEmpty          = errors.New("fatvol: directory not empty")
	errDiskFull          = errors.New("fatvol: disk full")
	errNotReady          = errors.New("fatvol: not ready")
	errInvalidParameter  = errors.New("fatvol: invalid parameter")
	errWriteProtected    = errors.New("fatvol: write protected")
)
