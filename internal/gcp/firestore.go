package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Lllllllleong/filingmerger/internal/models"
	"github.com/Lllllllleong/filingmerger/internal/status"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreStore keeps one document per task in a collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	retry      RetryPolicy
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection, retry: DefaultRetry}
}

func (s *FirestoreStore) doc(taskID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(taskID)
}

// SetProgress stores progress unless the stored value is already higher.
func (s *FirestoreStore) SetProgress(ctx context.Context, taskID string, progress float64) error {
	ref := s.doc(taskID)
	return s.retry.Do(ctx, "firestore.setProgress", func(ctx context.Context) error {
		return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(ref)
			if err != nil && grpcstatus.Code(err) != codes.NotFound {
				return err
			}
			if err == nil && snap.Exists() {
				var cur models.TaskStatus
				if err := snap.DataTo(&cur); err == nil && cur.Progress >= progress {
					return nil
				}
			}
			return tx.Set(ref, map[string]interface{}{
				"progress":  progress,
				"updatedAt": time.Now().UTC(),
			}, firestore.MergeAll)
		})
	})
}

func (s *FirestoreStore) SetResult(ctx context.Context, taskID string, result models.Result) error {
	return s.retry.Do(ctx, "firestore.setResult", func(ctx context.Context) error {
		_, err := s.doc(taskID).Set(ctx, map[string]interface{}{
			"result":    result,
			"updatedAt": time.Now().UTC(),
		}, firestore.MergeAll)
		return err
	})
}

func (s *FirestoreStore) get(ctx context.Context, taskID string) (models.TaskStatus, error) {
	var snap *firestore.DocumentSnapshot
	err := s.retry.Do(ctx, "firestore.get", func(ctx context.Context) error {
		var err error
		snap, err = s.doc(taskID).Get(ctx)
		return err
	})
	if grpcstatus.Code(err) == codes.NotFound {
		return models.TaskStatus{}, status.ErrUnknownTask
	}
	if err != nil {
		return models.TaskStatus{}, fmt.Errorf("failed to read task %s: %w", taskID, err)
	}
	var ts models.TaskStatus
	if err := snap.DataTo(&ts); err != nil {
		return models.TaskStatus{}, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return ts, nil
}

func (s *FirestoreStore) Progress(ctx context.Context, taskID string) (float64, error) {
	ts, err := s.get(ctx, taskID)
	return ts.Progress, err
}

func (s *FirestoreStore) Result(ctx context.Context, taskID string) (*models.Result, error) {
	ts, err := s.get(ctx, taskID)
	return ts.Result, err
}
