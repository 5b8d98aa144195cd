package domain

import "github.com/google/uuid"

// FileAttachment references a file uploaded alongside a message. Content is
// fetched lazily from object storage by StorageKey; Data is populated only
// for the duration of a chat turn that needs to render the file.
type FileAttachment struct {
	ID         uuid.UUID
	Filename   string
	Size       int64
	MimeType   string
	StorageKey string

	Data []byte
}

func (f FileAttachment) IsImage() bool {
	switch f.MimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func (f FileAttachment) IsPDF() bool {
	return f.MimeType == "application/pdf"
}
