package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

const (
	mimeFolder      = "application/vnd.google-apps.folder"
	mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
	mimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DriveStorage keeps documents in Google Drive folders. Folder and file ids
// are Drive file ids; an empty parent means the caller's My Drive root.
type DriveStorage struct {
	svc   *drive.Service
	retry RetryPolicy
}

// NewDriveService creates a Drive client with the full drive scope.
func NewDriveService(ctx context.Context, opts ...option.ClientOption) (*drive.Service, error) {
	opts = append([]option.ClientOption{option.WithScopes(drive.DriveScope)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	return svc, nil
}

// NewDriveStorage wraps svc with the default retry policy.
func NewDriveStorage(svc *drive.Service) *DriveStorage {
	return &DriveStorage{svc: svc, retry: DefaultRetry}
}

// ListDocuments returns every PDF directly inside folderID.
func (d *DriveStorage) ListDocuments(ctx context.Context, folderID string) ([]models.FileRef, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", quote(folderID), models.MimePDF)
	var refs []models.FileRef
	pageToken := ""
	for {
		var res *drive.FileList
		err := d.retry.Do(ctx, "drive.files.list", func(ctx context.Context) error {
			call := d.svc.Files.List().
				Q(q).
				Fields("nextPageToken, files(id, name, mimeType)").
				PageSize(1000).
				OrderBy("name").
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			res, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
		}
		for _, f := range res.Files {
			refs = append(refs, models.FileRef{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}
		if pageToken = res.NextPageToken; pageToken == "" {
			break
		}
	}
	return refs, nil
}

// DownloadDocument returns the content of a file.
func (d *DriveStorage) DownloadDocument(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := d.retry.Do(ctx, "drive.files.get", func(ctx context.Context) error {
		resp, err := d.svc.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", id, err)
	}
	return data, nil
}

// UploadDocument creates a new file in folderID.
func (d *DriveStorage) UploadDocument(ctx context.Context, folderID, name string, data []byte, mimeType string) (models.FileRef, error) {
	return d.create(ctx, &drive.File{Name: name, Parents: parents(folderID), MimeType: mimeType}, data, mimeType)
}

// EnsureFolder returns the folder called name under parentID, creating it
// when absent.
func (d *DriveStorage) EnsureFolder(ctx context.Context, parentID, name string) (models.FileRef, error) {
	parent := parentID
	if parent == "" {
		parent = "root"
	}
	q := fmt.Sprintf("name='%s' and mimeType='%s' and '%s' in parents and trashed=false", quote(name), mimeFolder, quote(parent))

	var res *drive.FileList
	err := d.retry.Do(ctx, "drive.files.list", func(ctx context.Context) error {
		var err error
		res, err = d.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).
			SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Context(ctx).Do()
		return err
	})
	if err != nil {
		return models.FileRef{}, fmt.Errorf("failed to look up folder %q: %w", name, err)
	}
	if len(res.Files) > 0 {
		return models.FileRef{ID: res.Files[0].Id, Name: res.Files[0].Name, MimeType: mimeFolder}, nil
	}

	ref, err := d.create(ctx, &drive.File{Name: name, Parents: parents(parentID), MimeType: mimeFolder}, nil, "")
	if err != nil {
		return models.FileRef{}, err
	}
	slog.Info("Created Drive folder.", "folderId", ref.ID, "name", name, "parentId", parentID)
	return ref, nil
}

// ImportSpreadsheet uploads an xlsx workbook converted to a Google Sheet.
func (d *DriveStorage) ImportSpreadsheet(ctx context.Context, folderID, name string, xlsx []byte) (models.FileRef, error) {
	name = strings.TrimSuffix(name, ".xlsx")
	return d.create(ctx, &drive.File{Name: name, Parents: parents(folderID), MimeType: mimeGoogleSheet}, xlsx, mimeXLSX)
}

func (d *DriveStorage) create(ctx context.Context, meta *drive.File, data []byte, mediaType string) (models.FileRef, error) {
	var created *drive.File
	err := d.retry.Do(ctx, "drive.files.create", func(ctx context.Context) error {
		call := d.svc.Files.Create(meta).Fields("id, name, mimeType").SupportsAllDrives(true).Context(ctx)
		if data != nil {
			call = call.Media(bytes.NewReader(data), googleapi.ContentType(mediaType))
		}
		var err error
		created, err = call.Do()
		return err
	})
	if err != nil {
		return models.FileRef{}, fmt.Errorf("failed to create %q: %w", meta.Name, err)
	}
	return models.FileRef{ID: created.Id, Name: created.Name, MimeType: created.MimeType}, nil
}

func parents(folderID string) []string {
	if folderID == "" {
		return nil
	}
	return []string{folderID}
}

// quote escapes a value for a Drive query string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
