// Package rtlib provides the host runtime functions
// print_number/print_string/str_cat that JIT-compiled code calls as
// plain external symbols. All three are defined in Go; the cgo
// preamble below only includes C headers, since a file with //export
// directives may only declare, not define, C functions in its
// preamble (the reason the teacher's lib.go documents).
package rtlib

// #include <stdlib.h>
// #include <string.h>
import "C"

import (
	"fmt"
	"unsafe"
)

//export print_number
func print_number(n C.double) C.double {
	fmt.Println(float64(n))
	return 0
}

//export print_string
func print_string(s *C.char) C.double {
	fmt.Println(C.GoString(s))
	return 0
}

// str_cat concatenates two NUL-terminated strings and returns a freshly
// C-malloc'd buffer, since the JIT-compiled caller has no Go garbage
// collector keeping the result alive.
//
//export str_cat
func str_cat(a, b *C.char) *C.char {
	as, bs := C.GoString(a), C.GoString(b)
	joined := as + bs
	out := C.malloc(C.size_t(len(joined) + 1))
	cbuf := (*[1 << 30]byte)(unsafe.Pointer(out))[: len(joined)+1 : len(joined)+1]
	copy(cbuf, joined)
	cbuf[len(joined)] = 0
	return (*C.char)(out)
}
