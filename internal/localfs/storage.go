// Package localfs serves a directory tree as document storage for one-shot
// local runs. Folder and file ids are paths inside the root.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// ErrNotFound is returned for ids that do not exist under the root.
var ErrNotFound = errors.New("not found")

// Storage reads and writes files below Root.
type Storage struct {
	Root string
}

func New(root string) (*Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &Storage{Root: abs}, nil
}

// resolve maps an id to an absolute path, refusing anything outside Root.
func (s *Storage) resolve(id string) (string, error) {
	p := id
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.Root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is outside %s", id, s.Root)
	}
	return p, nil
}

func (s *Storage) ListDocuments(_ context.Context, folderID string) ([]models.FileRef, error) {
	dir, err := s.resolve(folderID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var refs []models.FileRef
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		refs = append(refs, models.FileRef{ID: filepath.Join(dir, e.Name()), Name: e.Name(), MimeType: models.MimePDF})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (s *Storage) DownloadDocument(_ context.Context, id string) ([]byte, error) {
	p, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return data, err
}

// UploadDocument writes through a temp file and rename so readers never see a
// partial document.
func (s *Storage) UploadDocument(_ context.Context, folderID, name string, data []byte, mimeType string) (models.FileRef, error) {
	dir, err := s.resolve(folderID)
	if err != nil {
		return models.FileRef{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.FileRef{}, err
	}
	dst := filepath.Join(dir, filepath.Base(name))
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return models.FileRef{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return models.FileRef{}, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return models.FileRef{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return models.FileRef{}, fmt.Errorf("finalize %s: %w", dst, err)
	}
	return models.FileRef{ID: dst, Name: filepath.Base(name), MimeType: mimeType}, nil
}

func (s *Storage) EnsureFolder(_ context.Context, parentID, name string) (models.FileRef, error) {
	parent, err := s.resolve(parentID)
	if err != nil {
		return models.FileRef{}, err
	}
	dir := filepath.Join(parent, filepath.Base(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.FileRef{}, fmt.Errorf("create folder %s: %w", dir, err)
	}
	return models.FileRef{ID: dir, Name: name}, nil
}

// ImportSpreadsheet stores the workbook as-is; the local spreadsheet backend
// reads xlsx directly.
func (s *Storage) ImportSpreadsheet(ctx context.Context, folderID, name string, xlsx []byte) (models.FileRef, error) {
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	return s.UploadDocument(ctx, folderID, name, xlsx, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}
