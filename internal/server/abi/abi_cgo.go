//go:build cgo

package abi

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <signal.h>
#include <stdlib.h>
#include <string.h>

typedef int (*make_move_fn)(const char board[][26], int n, char turn, int *row, int *col);

static int call_make_move(void *fn, const char *board, int n, char turn, int *row, int *col) {
	return ((make_move_fn)fn)((const char (*)[26])board, n, turn, row, col);
}

static void default_fault_signals(void) {
	struct sigaction sa;
	memset(&sa, 0, sizeof(sa));
	sa.sa_handler = SIG_DFL;
	sigemptyset(&sa.sa_mask);
	sigaction(SIGSEGV, &sa, NULL);
	sigaction(SIGBUS, &sa, NULL);
	sigaction(SIGFPE, &sa, NULL);
	sigaction(SIGILL, &sa, NULL);
}

static void *open_lib(const char *path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Library is a loaded artifact with its entry point resolved
type Library struct {
	handle unsafe.Pointer
	fn     unsafe.Pointer
}

// Open loads the shared object at path and resolves makeMove
func Open(path string) (*Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.open_lib(cpath)
	if handle == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}

	csym := C.CString(Symbol)
	defer C.free(unsafe.Pointer(csym))

	fn := C.dlsym(handle, csym)
	if fn == nil {
		C.dlclose(handle)
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolMissing, Symbol, path)
	}
	return &Library{handle: handle, fn: fn}, nil
}

// Call runs makeMove once. row and col start at -1 so an implementation
// that never writes them reports an out-of-range move.
func (l *Library) Call(grid *Grid, n int, turn byte) Result {
	flat := grid.Flatten()
	buf := C.CBytes(flat)
	defer C.free(buf)

	row, col := C.int(-1), C.int(-1)
	ret := C.call_make_move(l.fn, (*C.char)(buf), C.int(n), C.char(turn), &row, &col)
	return Result{Row: int(row), Col: int(col), Return: int(ret)}
}

// ResetFaultSignals hands SIGSEGV, SIGBUS, SIGFPE and SIGILL back to the
// kernel default so a crashing makeMove terminates the process by signal
// instead of entering the Go runtime's crash handler. Only call it in a
// disposable child that does nothing after the native call.
func ResetFaultSignals() {
	C.default_fault_signals()
}

// Close unloads the library
func (l *Library) Close() error {
	if l.handle == nil {
		return nil
	}
	if C.dlclose(l.handle) != 0 {
		return fmt.Errorf("dlclose: %s", C.GoString(C.dlerror()))
	}
	l.handle = nil
	return nil
}
