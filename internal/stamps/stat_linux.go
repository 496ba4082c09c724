//go:build linux

package stamps

import (
	"os"
	"syscall"
	"time"
)

// statTimes returns (created, accessed, true) when stat extensions are
// available. Linux exposes no birth time through Stat_t; the inode
// change time is the closest stable equivalent.
func statTimes(info os.FileInfo) (time.Time, time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	created := time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	accessed := time.Unix(st.Atim.Sec, st.Atim.Nsec)
	return created, accessed, true
}
