//go:build !cgo

package abi

// Library is unavailable without cgo
type Library struct{}

// Open always fails with ErrUnsupported in builds without cgo
func Open(path string) (*Library, error) {
	return nil, ErrUnsupported
}

func (l *Library) Call(grid *Grid, n int, turn byte) Result {
	return Result{Row: -1, Col: -1, Return: -1}
}

func ResetFaultSignals() {}

func (l *Library) Close() error {
	return nil
}
