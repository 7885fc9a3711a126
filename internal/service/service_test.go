package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"massfs/internal/drive"
)

type fakeStore struct {
	ids     []int64
	drives  map[int64]*drive.Drive
	updates int
}

func (f *fakeStore) ForceUpdate() { f.updates++ }
func (f *fakeStore) Count() int   { return len(f.ids) }
func (f *fakeStore) InterfaceIDs() []int64 { return f.ids }
func (f *fakeStore) WithDrive(id int64, fn func(*drive.Drive) error) error {
	d, ok := f.drives[id]
	if !ok {
		return drive.ErrInvalidDriveInterfaceID
	}
	return fn(d)
}

func TestListMountedDrivesForcesUpdateAndCopiesIDs(t *testing.T) {
	store := &fakeStore{ids: []int64{10, 20, 30}}
	svc := &Service{manager: store}

	out := make([]int64, 2)
	n := svc.ListMountedDrives(out)

	require.Equal(t, 2, n, "copy must stop at the caller's buffer length")
	require.Equal(t, 1, store.updates, "every operation must force a fresh update first")
}

func TestMountedDriveCountForcesUpdate(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2}}
	svc := &Service{manager: store}

	require.Equal(t, 2, svc.MountedDriveCount())
	require.Equal(t, 1, store.updates)
}

func TestGetLabelUnknownIDIsError(t *testing.T) {
	store := &fakeStore{drives: map[int64]*drive.Drive{}}
	svc := &Service{manager: store}

	_, err := svc.GetLabel(404)
	require.ErrorIs(t, err, drive.ErrInvalidDriveInterfaceID)
}

func TestGetLabelUnmountedDriveIsError(t *testing.T) {
	store := &fakeStore{drives: map[int64]*drive.Drive{1: {}}}
	svc := &Service{manager: store}

	_, err := svc.GetLabel(1)
	require.ErrorIs(t, err, drive.ErrNoLUNMounted)
}

func TestSetLabelPropagatesDriveLookupFailure(t *testing.T) {
	store := &fakeStore{drives: map[int64]*drive.Drive{}}
	svc := &Service{manager: store}

	err := svc.SetLabel(1, "NEWLABEL")
	require.ErrorIs(t, err, drive.ErrInvalidDriveInterfaceID)
}

func TestOpenFilesystemUnknownIDIsError(t *testing.T) {
	store := &fakeStore{drives: map[int64]*drive.Drive{}}
	svc := &Service{manager: store}

	_, err := svc.OpenFilesystem(1)
	require.ErrorIs(t, err, drive.ErrInvalidDriveInterfaceID)
}
