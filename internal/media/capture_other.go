//go:build !linux || !cgo

package media

import "fmt"

// Capture reports ErrDeviceUnavailable on platforms without mediadevices
// drivers. Camera/mic capture needs V4L2 + malgo, which are Linux-only in
// this build.
func Capture(bool) (*LocalStream, error) {
	return nil, fmt.Errorf("%w: no capture drivers on this platform", ErrDeviceUnavailable)
}
