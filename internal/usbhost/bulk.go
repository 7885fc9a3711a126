package usbhost

// BulkReader is satisfied by *gousb.InEndpoint.
type BulkReader interface {
	Read(p []byte) (int, error)
}

// BulkWriter is satisfied by *gousb.OutEndpoint.
type BulkWriter interface {
	Write(p []byte) (int, error)
}

// BulkPostIn reads into buf, clearing the IN endpoint's halt and retrying
// once on failure, per §4.1's bulk_post contract.
func BulkPostIn(dev ControlPoster, ep BulkReader, epAddr uint8, buf []byte) (int, error) {
	n, err := ep.Read(buf)
	if err != nil {
		if clearErr := ClearEndpointHalt(dev, epAddr); clearErr != nil {
			return n, err
		}
		return ep.Read(buf)
	}
	return n, nil
}

// BulkPostOut writes buf, clearing the OUT endpoint's halt and retrying once
// on failure, per §4.1's bulk_post contract.
func BulkPostOut(dev ControlPoster, ep BulkWriter, epAddr uint8, buf []byte) (int, error) {
	n, err := ep.Write(buf)
	if err != nil {
		if clearErr := ClearEndpointHalt(dev, epAddr); clearErr != nil {
			return n, err
		}
		return ep.Write(buf)
	}
	return n, nil
}
