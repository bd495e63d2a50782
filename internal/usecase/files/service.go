// Package files implements the directory listing, move, rename and preview
// operations.
package files

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"filedeck/internal/adapter/filesystem"
	"filedeck/internal/domain"
	"filedeck/internal/infra/tracer"
)

// PathValidator confines request paths, e.g. to a sandbox root. It returns
// the path the operation should act on.
type PathValidator interface {
	ValidatePath(requested string) (string, error)
}

// Options tunes the service.
type Options struct {
	// MaxPreviewBytes caps inline previews; 0 disables the cap.
	MaxPreviewBytes int64
	// AllowOverwrite lets move and rename replace an existing file.
	AllowOverwrite bool
}

type Service struct {
	fs     filesystem.Backend
	opts   Options
	paths  PathValidator
	bus    domain.EventBus
	audit  domain.OperationAuditor
	logger *slog.Logger
}

var _ domain.FileManager = (*Service)(nil)

// NewService creates a Service. bus may be nil.
func NewService(backend filesystem.Backend, opts Options, bus domain.EventBus, logger *slog.Logger) *Service {
	return &Service{
		fs:     backend,
		opts:   opts,
		bus:    bus,
		logger: logger,
	}
}

// SetPathValidator confines every path argument. Without one, paths are used
// as given.
func (s *Service) SetPathValidator(v PathValidator) { s.paths = v }

// SetAuditLogger records move and rename attempts.
func (s *Service) SetAuditLogger(a domain.OperationAuditor) { s.audit = a }

// List returns the regular files directly inside dirPath, in name order.
func (s *Service) List(ctx context.Context, dirPath string) (_ []domain.FileInfo, err error) {
	const op = "Files.List"
	ctx, span := tracer.StartSpan(ctx, "files.list", trace.WithAttributes(tracer.StringAttr("dir_path", dirPath)))
	defer func() { s.finish(ctx, span, op, err) }()

	dir, err := s.openDir(op, dirPath, invalidDirMsg)
	if err != nil {
		return nil, err
	}
	infos, err := s.regularFiles(dir)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}

	out := make([]domain.FileInfo, 0, len(infos))
	for _, fi := range infos {
		out = append(out, domain.FileInfo{
			Name:     fi.name,
			FullPath: fi.path,
			Type:     GuessType(fi.name),
			Size:     fi.size,
		})
	}

	span.SetAttributes(tracer.IntAttr("count", len(out)))
	s.emit(ctx, domain.EventFileListed, map[string]any{"dir_path": dir, "count": len(out)})
	return out, nil
}

// Count returns the number of regular files directly inside dirPath.
func (s *Service) Count(ctx context.Context, dirPath string) (_ int, err error) {
	const op = "Files.Count"
	ctx, span := tracer.StartSpan(ctx, "files.count", trace.WithAttributes(tracer.StringAttr("dir_path", dirPath)))
	defer func() { s.finish(ctx, span, op, err) }()

	dir, err := s.openDir(op, dirPath, invalidDirMsg)
	if err != nil {
		return 0, err
	}
	infos, err := s.regularFiles(dir)
	if err != nil {
		return 0, domain.WrapOp(op, err)
	}

	span.SetAttributes(tracer.IntAttr("count", len(infos)))
	s.emit(ctx, domain.EventFileCounted, map[string]any{"dir_path": dir, "count": len(infos)})
	return len(infos), nil
}

// Move moves srcPath into destDir, keeping its base name, and returns the new
// path.
func (s *Service) Move(ctx context.Context, srcPath, destDir string) (_ string, err error) {
	const op = "Files.Move"
	ctx, span := tracer.StartSpan(ctx, "files.move", trace.WithAttributes(
		tracer.StringAttr("src_path", srcPath),
		tracer.StringAttr("dest_dir", destDir),
	))
	defer func() { s.finish(ctx, span, op, err) }()

	src, err := s.openFile(op, srcPath, "Source file does not exist")
	if err != nil {
		return "", err
	}
	dest, err := s.openDir(op, destDir, "Destination directory does not exist")
	if err != nil {
		return "", err
	}

	newPath := filepath.Join(dest, filepath.Base(src))
	noop, err := s.checkTarget(op, src, newPath)
	if err != nil {
		return "", err
	}
	if !noop {
		err = s.fs.Move(src, newPath)
		s.record(ctx, domain.AuditFileMove, src, "move", err, map[string]string{"new_path": newPath})
		if err != nil {
			return "", domain.WrapOp(op, err)
		}
	}

	s.logger.Debug("file moved", "src", src, "new_path", newPath, "noop", noop)
	s.emit(ctx, domain.EventFileMoved, map[string]string{"src_path": src, "new_path": newPath})
	return newPath, nil
}

// Rename renames srcPath to newName inside the same directory and returns the
// new path. newName must be a plain base name.
func (s *Service) Rename(ctx context.Context, srcPath, newName string) (_ string, err error) {
	const op = "Files.Rename"
	ctx, span := tracer.StartSpan(ctx, "files.rename", trace.WithAttributes(
		tracer.StringAttr("src_path", srcPath),
		tracer.StringAttr("new_name", newName),
	))
	defer func() { s.finish(ctx, span, op, err) }()

	if err := ValidateBaseName(newName); err != nil {
		return "", domain.NewDomainError(op, domain.ErrInvalidInput, err.Error())
	}
	src, err := s.openFile(op, srcPath, "File does not exist")
	if err != nil {
		return "", err
	}

	newPath := filepath.Join(filepath.Dir(src), newName)
	noop, err := s.checkTarget(op, src, newPath)
	if err != nil {
		return "", err
	}
	if !noop {
		err = s.fs.Rename(src, newPath)
		s.record(ctx, domain.AuditFileRename, src, "rename", err, map[string]string{"new_path": newPath})
		if err != nil {
			return "", domain.WrapOp(op, err)
		}
	}

	s.logger.Debug("file renamed", "src", src, "new_path", newPath, "noop", noop)
	s.emit(ctx, domain.EventFileRenamed, map[string]string{"src_path": src, "new_path": newPath})
	return newPath, nil
}

// Preview inlines image and text files as a base64 data URI. Anything else
// is described by name only and never read.
func (s *Service) Preview(ctx context.Context, filePath string) (_ *domain.Preview, err error) {
	const op = "Files.Preview"
	ctx, span := tracer.StartSpan(ctx, "files.preview", trace.WithAttributes(tracer.StringAttr("file_path", filePath)))
	defer func() { s.finish(ctx, span, op, err) }()

	path, err := s.validate(filePath)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "File does not exist")
	}

	mimeType := GuessType(path)
	kind := previewKind(mimeType)
	span.SetAttributes(tracer.StringAttr("mime_type", mimeType), tracer.Int64Attr("size", info.Size()))

	p := &domain.Preview{Type: kind}
	if kind == domain.PreviewOther {
		p.Name = filepath.Base(path)
	} else {
		limit := s.opts.MaxPreviewBytes
		if limit > 0 && info.Size() > limit {
			return nil, domain.NewDomainError(op, domain.ErrLimitReached,
				fmt.Sprintf("file is %d bytes, preview limit is %d", info.Size(), limit))
		}
		data, err := s.fs.ReadFile(path, limit)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		p.Data = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}

	s.emit(ctx, domain.EventFilePreviewed, map[string]string{"file_path": path, "type": string(kind), "mime_type": mimeType})
	return p, nil
}

// ValidateBaseName rejects names that would leave the parent directory or
// cannot name a file.
func ValidateBaseName(name string) error {
	switch {
	case name == "":
		return errors.New("new name must not be empty")
	case name == "." || name == "..":
		return fmt.Errorf("new name %q is not a file name", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("new name %q must not contain path separators", name)
	case strings.ContainsRune(name, 0):
		return errors.New("new name must not contain NUL bytes")
	}
	return nil
}

const invalidDirMsg = "Invalid directory path"

type regularFile struct {
	name string
	path string
	size int64
}

// regularFiles returns the regular files in dir, following symlinks and
// skipping dangling ones.
func (s *Service) regularFiles(dir string) ([]regularFile, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := make([]regularFile, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())

		var info fs.FileInfo
		switch {
		case e.Type().IsRegular():
			info, err = e.Info()
		case e.Type()&fs.ModeSymlink != 0:
			info, err = s.fs.Stat(p)
		default:
			continue
		}
		// Entries that vanish or dangle mid-scan are skipped.
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, regularFile{name: e.Name(), path: p, size: info.Size()})
	}
	return out, nil
}

func (s *Service) validate(p string) (string, error) {
	if s.paths == nil {
		return p, nil
	}
	return s.paths.ValidatePath(p)
}

// openDir validates dirPath and checks that it is a directory.
func (s *Service) openDir(op, dirPath, msg string) (string, error) {
	dir, err := s.validate(dirPath)
	if err != nil {
		return "", err
	}
	info, err := s.fs.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", domain.NewDomainError(op, domain.ErrInvalidInput, msg)
	}
	return dir, nil
}

// openFile validates filePath and checks that it is a regular file.
func (s *Service) openFile(op, filePath, msg string) (string, error) {
	p, err := s.validate(filePath)
	if err != nil {
		return "", err
	}
	info, err := s.fs.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", domain.NewDomainError(op, domain.ErrInvalidInput, msg)
	}
	return p, nil
}

// checkTarget applies the collision policy. It reports noop when target is
// src itself.
func (s *Service) checkTarget(op, src, target string) (noop bool, err error) {
	existing, err := s.fs.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, domain.WrapOp(op, err)
	}

	if srcInfo, err := s.fs.Lstat(src); err == nil && s.fs.SameFile(srcInfo, existing) {
		return true, nil
	}
	if existing.IsDir() || !s.opts.AllowOverwrite {
		return false, domain.NewDomainError(op, domain.ErrDuplicate, target)
	}
	return false, nil
}

func (s *Service) record(ctx context.Context, typ domain.AuditEventType, resource, action string, opErr error, detail map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogOperation(ctx, typ, resource, action, opErr, detail); err != nil {
		s.logger.Warn("audit write failed", "type", typ, "resource", resource, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, typ domain.EventType, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, domain.NewEvent(ctx, typ, payload))
}

// finish closes the operation span and announces failures on the bus.
func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error) {
	tracer.End(span, err)
	if err != nil {
		s.emit(ctx, domain.EventOperationFailed, map[string]string{
			"operation": op,
			"code":      string(domain.ErrorCodeOf(err)),
			"error":     err.Error(),
		})
	}
}
