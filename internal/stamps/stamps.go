// Package stamps extracts creation/modification/access instants from
// filesystem stat data, per platform.
package stamps

import (
	"os"
	"time"

	"github.com/starford/odal/internal/models"
)

// FromInfo derives the three timestamps of an item from its FileInfo.
// Platforms without a birth time fall back to the inode change time for
// Created; platforms without stat extensions fall back to ModTime for
// all three.
func FromInfo(info os.FileInfo) models.Timestamps {
	created, accessed, ok := statTimes(info)
	modified := info.ModTime()
	if !ok {
		created = modified
		accessed = modified
	}
	return models.Timestamps{
		Created:  toStamp(created),
		Modified: toStamp(modified),
		Accessed: toStamp(accessed),
	}
}

func toStamp(t time.Time) models.Stamp {
	return models.Stamp{
		ISO:   t.UTC().Format(time.RFC3339Nano),
		Epoch: t.Unix(),
	}
}
