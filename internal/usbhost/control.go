package usbhost

import (
	"time"
)

// USB control transfer direction/type/recipient bits (bmRequestType).
const (
	reqDirDeviceToHost = 0x80
	reqTypeClass       = 0x20
	reqTypeStandard    = 0x00
	reqRecipIface      = 0x01
	reqRecipEndpoint   = 0x02
)

// Mass Storage class-specific requests (USB Mass Storage Class Bulk-Only
// Transport spec).
const (
	reqGetMaxLUN        = 0xFE
	reqBulkOnlyReset    = 0xFF
	reqStdClearFeature  = 0x01
	featureEndpointHalt = 0x00
	reqStdGetStatus     = 0x00
)

// GetMaxLUN issues the class Get Max LUN request on ifaceNum and returns the
// number of LUNs to probe. A stalled or implausible (>15, or the common
// 0xFF "unsupported" stall artifact) response falls back to a single LUN,
// per §4.1 and the supplemented clamp in SPEC_FULL §12.3.
func GetMaxLUN(dev ControlPoster, ifaceNum uint8) uint8 {
	buf := make([]byte, 1)
	_, err := dev.Control(reqDirDeviceToHost|reqTypeClass|reqRecipIface, reqGetMaxLUN, 0, uint16(ifaceNum), buf)
	time.Sleep(ControlSettleDelay)
	if err != nil {
		return 1
	}
	maxLUN := buf[0]
	if maxLUN > 15 || maxLUN == 0xFF {
		return 1
	}
	return maxLUN + 1
}

// ClearEndpointHalt issues Clear-Feature(ENDPOINT_HALT) on the given
// endpoint address.
func ClearEndpointHalt(dev ControlPoster, epAddr uint8) error {
	_, err := dev.Control(reqTypeStandard|reqRecipEndpoint, reqStdClearFeature, featureEndpointHalt, uint16(epAddr), nil)
	time.Sleep(ControlSettleDelay)
	return err
}

// GetEndpointHalted reads the halt bit via a standard Get-Status request.
func GetEndpointHalted(dev ControlPoster, epAddr uint8) (bool, error) {
	buf := make([]byte, 2)
	_, err := dev.Control(reqDirDeviceToHost|reqTypeStandard|reqRecipEndpoint, reqStdGetStatus, 0, uint16(epAddr), buf)
	time.Sleep(ControlSettleDelay)
	if err != nil {
		return false, err
	}
	return buf[0]&0x01 != 0, nil
}

// BulkOnlyReset issues the class Bulk-Only Mass Storage Reset request
// followed by Clear-Feature(HALT) on both bulk endpoints, per §4.1.
func BulkOnlyReset(dev ControlPoster, ifaceNum uint8, inAddr, outAddr uint8) error {
	_, err := dev.Control(reqTypeClass|reqRecipIface, reqBulkOnlyReset, 0, uint16(ifaceNum), nil)
	time.Sleep(ControlSettleDelay)
	if err != nil {
		return err
	}
	if err := ClearEndpointHalt(dev, inAddr); err != nil {
		return err
	}
	return ClearEndpointHalt(dev, outAddr)
}

// ResetController binds a device and an interface/endpoint triple to the
// narrow scsi.EndpointController contract (ClearHalt/Reset) that the SCSI
// transport depends on, without the transport needing to know anything
// about gousb or control transfers.
type ResetController struct {
	Dev                ControlPoster
	IfaceNum           uint8
	InAddr, OutAddr    uint8
}

// ClearHalt clears a stall on a single endpoint.
func (r *ResetController) ClearHalt(epAddr uint8) error {
	return ClearEndpointHalt(r.Dev, epAddr)
}

// Reset performs a full bulk-only mass-storage reset.
func (r *ResetController) Reset() error {
	return BulkOnlyReset(r.Dev, r.IfaceNum, r.InAddr, r.OutAddr)
}

// Halted reports whether the given endpoint is currently stalled.
func (r *ResetController) Halted(epAddr uint8) (bool, error) {
	return GetEndpointHalted(r.Dev, epAddr)
}
