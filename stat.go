package fatcore

import (
	"os"
	"time"
)

// FileInfo returns an os.FileInfo view over the directory record, for
// callers which present entries through standard library interfaces.
func (e *DirEntry) FileInfo() os.FileInfo {
	return dirEntryFileInfo{*e}
}

type dirEntryFileInfo struct {
	entry DirEntry
}

func (e dirEntryFileInfo) Name() string {
	return e.entry.NameString()
}

func (e dirEntryFileInfo) Size() int64 {
	return int64(e.entry.Size)
}

func (e dirEntryFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir
	}
	return 0
}

func (e dirEntryFileInfo) ModTime() time.Time {
	date := ParseDate(e.entry.Date)
	clock := ParseTime(e.entry.Time)

	// If the date IsZero() it contained an invalid value in which case we return time.Time{}.
	// For the time part we cannot do that because clock.IsZero() is perfectly valid.
	if date.IsZero() {
		return time.Time{}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
}

func (e dirEntryFileInfo) IsDir() bool {
	return e.entry.IsSubdir()
}

func (e dirEntryFileInfo) Sys() interface{} {
	return e.entry
}
