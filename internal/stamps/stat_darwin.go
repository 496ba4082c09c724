//go:build darwin

package stamps

import (
	"os"
	"syscall"
	"time"
)

// statTimes returns (created, accessed, true). Darwin exposes the real
// birth time via Birthtimespec.
func statTimes(info os.FileInfo) (time.Time, time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	created := time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec)
	accessed := time.Unix(st.Atimespec.Sec, st.Atimespec.Nsec)
	return created, accessed, true
}
