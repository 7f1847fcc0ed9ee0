//go:build !linux && !darwin

package sys

import "errors"

var ErrUnsupported = errors.New("free space probing not supported on this platform")

func FreeSpace(path string) (uint64, error) {
	return 0, ErrUnsupported
}
