package domain

import "context"

// UnknownMIMEType is reported for files whose type cannot be guessed.
const UnknownMIMEType = "unknown"

// FileInfo describes a regular file found in a directory listing.
type FileInfo struct {
	Name     string `json:"name"`
	FullPath string `json:"full_path"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
}

// PreviewKind is the content category returned by a preview.
type PreviewKind string

const (
	PreviewImage PreviewKind = "image"
	PreviewText  PreviewKind = "text"
	PreviewOther PreviewKind = "other"
)

// Preview is the result of previewing a file. Inline kinds carry a data URI in
// Data; PreviewOther carries only the base name.
type Preview struct {
	Type PreviewKind `json:"type"`
	Data string      `json:"preview_data,omitempty"`
	Name string      `json:"name,omitempty"`
}

// FileManager is the file operation surface exposed by the API.
type FileManager interface {
	List(ctx context.Context, dirPath string) ([]FileInfo, error)
	Count(ctx context.Context, dirPath string) (int, error)
	Move(ctx context.Context, srcPath, destDir string) (string, error)
	Rename(ctx context.Context, srcPath, newName string) (string, error)
	Preview(ctx context.Context, filePath string) (*Preview, error)
}
