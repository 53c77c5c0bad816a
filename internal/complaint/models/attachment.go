package models

import (
	"time"

	id "grievance/pkg/domain"
)

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypePDF   FileType = "pdf"
)

// MaxFilesPerType caps how many files of one type a single request may add.
const MaxFilesPerType = 5

type Attachment struct {
	ID          id.AttachmentID
	ComplaintID id.ComplaintID
	FileName    string
	FilePath    string
	FileType    FileType
	MimeType    string
	FileSize    int64
	CreatedAt   time.Time
}

// IsImage reports whether the attachment was stored by the image strategy.
func (a Attachment) IsImage() bool {
	return a.FileType == FileTypeImage
}
