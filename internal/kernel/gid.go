package kernel

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGID extracts the current goroutine ID using runtime.Stack. The kernel
// uses it to tell whether a caller is the thread currently holding the run
// token or an unregistered host goroutine.
func curGID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	// Stack format: "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
