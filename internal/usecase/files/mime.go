package files

import (
	"mime"
	"path/filepath"
	"strings"

	"filedeck/internal/domain"
)

// extraTypes fills gaps in the builtin table so guesses do not depend on the
// host's mime.types files.
var extraTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".ics":      "text/calendar",
	".py":       "text/x-python",
	".bmp":      "image/bmp",
	".ico":      "image/vnd.microsoft.icon",
	".tif":      "image/tiff",
	".tiff":     "image/tiff",
	".heic":     "image/heic",
	".mp3":      "audio/mpeg",
	".wav":      "audio/x-wav",
	".mp4":      "video/mp4",
	".mov":      "video/quicktime",
	".zip":      "application/zip",
	".gz":       "application/gzip",
	".tar":      "application/x-tar",
	".doc":      "application/msword",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":      "application/vnd.ms-excel",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
}

func init() {
	for ext, typ := range extraTypes {
		// Only fails for a malformed extension or type.
		_ = mime.AddExtensionType(ext, typ)
	}
}

// GuessType returns the MIME type for path's extension without parameters,
// or domain.UnknownMIMEType.
func GuessType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return domain.UnknownMIMEType
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return domain.UnknownMIMEType
	}
	typ, _, _ = strings.Cut(typ, ";")
	return strings.TrimSpace(typ)
}

// previewKind maps a MIME type to the preview category. Only image and text
// content is inlined.
func previewKind(mimeType string) domain.PreviewKind {
	major, _, _ := strings.Cut(mimeType, "/")
	switch major {
	case "image":
		return domain.PreviewImage
	case "text":
		return domain.PreviewText
	default:
		return domain.PreviewOther
	}
}
