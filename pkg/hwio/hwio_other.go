//go:build !linux && !windows
// +build !linux,!windows

package hwio

// Open creates the platform backend (stub for unsupported platforms).
func Open() (Backend, error) {
	return nil, ErrUnsupported
}
