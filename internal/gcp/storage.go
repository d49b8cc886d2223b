package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/filingmerger/internal/models"
)

// ErrImportUnsupported is returned by GCSStorage.ImportSpreadsheet; buckets
// cannot hold native Google Sheets.
var ErrImportUnsupported = errors.New("cloud storage cannot import spreadsheets; pass a Sheets file id")

// GCSStorage keeps documents in a bucket. A folder id is "bucket/prefix" and a
// file id is "bucket/object".
type GCSStorage struct {
	client *storage.Client
	retry  RetryPolicy
}

func NewGCSStorage(client *storage.Client) *GCSStorage {
	return &GCSStorage{client: client, retry: DefaultRetry}
}

func splitID(id string) (bucket, object string) {
	bucket, object, _ = strings.Cut(strings.TrimPrefix(id, "gs://"), "/")
	return bucket, object
}

// ListDocuments returns the .pdf objects directly under the folder prefix.
func (g *GCSStorage) ListDocuments(ctx context.Context, folderID string) ([]models.FileRef, error) {
	bucket, prefix := splitID(folderID)
	if bucket == "" {
		return nil, fmt.Errorf("invalid folder id %q", folderID)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var refs []models.FileRef
	err := g.retry.Do(ctx, "gcs.list", func(ctx context.Context) error {
		refs = refs[:0]
		it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				return err
			}
			if attrs.Name == "" || !strings.EqualFold(path.Ext(attrs.Name), ".pdf") {
				continue
			}
			refs = append(refs, models.FileRef{
				ID:       bucket + "/" + attrs.Name,
				Name:     path.Base(attrs.Name),
				MimeType: attrs.ContentType,
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
	}
	return refs, nil
}

func (g *GCSStorage) DownloadDocument(ctx context.Context, id string) ([]byte, error) {
	bucket, object := splitID(id)
	var data []byte
	err := g.retry.Do(ctx, "gcs.read", func(ctx context.Context) error {
		r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			return err
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// UploadDocument writes folderID/name once; an existing object is kept.
func (g *GCSStorage) UploadDocument(ctx context.Context, folderID, name string, data []byte, mimeType string) (models.FileRef, error) {
	bucket, prefix := splitID(folderID)
	object := path.Join(prefix, name)
	err := g.retry.Do(ctx, "gcs.write", func(ctx context.Context) error {
		return SaveToGCSAtomically(ctx, g.client.Bucket(bucket), object, data, mimeType)
	})
	if err != nil {
		return models.FileRef{}, err
	}
	return models.FileRef{ID: bucket + "/" + object, Name: name, MimeType: mimeType}, nil
}

// EnsureFolder only composes the prefix; buckets have no folder objects.
func (g *GCSStorage) EnsureFolder(_ context.Context, parentID, name string) (models.FileRef, error) {
	if parentID == "" {
		return models.FileRef{}, fmt.Errorf("folder %q needs a bucket parent", name)
	}
	return models.FileRef{ID: strings.TrimSuffix(parentID, "/") + "/" + name, Name: name}, nil
}

func (g *GCSStorage) ImportSpreadsheet(context.Context, string, string, []byte) (models.FileRef, error) {
	return models.FileRef{}, ErrImportUnsupported
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte, contentType string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if alreadyExists(err) {
			slog.Info("Object already exists. Skipping.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if alreadyExists(err) {
			slog.Info("Object already exists. Skipping.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}
