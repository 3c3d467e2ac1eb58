package model

import "strings"

// StagedFile is an uploaded file written to local temporary storage.
type StagedFile struct {
	OriginalName string
	MimeType     string
	Path         string
	Size         int64
}

// IsMedia reports whether the file is audio or video.
func (f *StagedFile) IsMedia() bool {
	return strings.HasPrefix(f.MimeType, "audio/") || strings.HasPrefix(f.MimeType, "video/")
}
