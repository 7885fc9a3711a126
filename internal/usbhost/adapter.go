package usbhost

// PostingIn wraps a bulk IN endpoint so that Read performs stall-clear-retry
// per §4.1's bulk_post contract before the byte count reaches the SCSI
// transport. It satisfies the scsi package's BulkIn interface structurally.
type PostingIn struct {
	Dev    ControlPoster
	EP     BulkReader
	EPAddr uint8
}

func (p *PostingIn) Read(buf []byte) (int, error) {
	return BulkPostIn(p.Dev, p.EP, p.EPAddr, buf)
}

// PostingOut is the OUT-direction counterpart of PostingIn.
type PostingOut struct {
	Dev    ControlPoster
	EP     BulkWriter
	EPAddr uint8
}

func (p *PostingOut) Write(buf []byte) (int, error) {
	return BulkPostOut(p.Dev, p.EP, p.EPAddr, buf)
}

// Endpoints bundles the posting wrappers and reset controller built from an
// Acquired interface, ready to hand to scsi.NewDevice.
func (a *Acquired) Endpoints(ifaceNum uint8) (*PostingIn, *PostingOut, *ResetController) {
	in := &PostingIn{Dev: a.dev, EP: a.In, EPAddr: a.InAddr()}
	out := &PostingOut{Dev: a.dev, EP: a.Out, EPAddr: a.OutAddr()}
	ctl := &ResetController{Dev: a.dev, IfaceNum: ifaceNum, InAddr: a.InAddr(), OutAddr: a.OutAddr()}
	return in, out, ctl
}
