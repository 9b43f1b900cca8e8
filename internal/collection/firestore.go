package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string, credentialsFile string) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating firestore client: %w", err)
	}

	return &Firestore{client: client}, nil
}

func (f *Firestore) buildQuery(q Query) (firestore.Query, error) {
	if err := q.validate(); err != nil {
		return firestore.Query{}, err
	}

	fq := f.client.Collection(q.Collection).Query
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Field, string(flt.Op), flt.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(o.Field, dir)
	}
	if q.StartAfter != nil {
		snap, ok := q.StartAfter.native.(*firestore.DocumentSnapshot)
		if !ok {
			return firestore.Query{}, fmt.Errorf("%w: cursor was not produced by firestore", ErrInvalidQuery)
		}
		fq = fq.StartAfter(snap)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq, nil
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]Document, error) {
	fq, err := f.buildQuery(q)
	if err != nil {
		return nil, err
	}

	it := fq.Documents(ctx)
	defer it.Stop()

	var docs []Document
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error querying %s: %w", q.Collection, classify(err))
		}
		docs = append(docs, fromSnapshot(snap))
	}

	return docs, nil
}

func fromSnapshot(snap *firestore.DocumentSnapshot) Document {
	return Document{
		ID:     snap.Ref.ID,
		Path:   relativePath(snap.Ref),
		Data:   snap.Data(),
		native: snap,
	}
}

// relativePath strips the project prefix firestore puts on DocumentRef.Path.
func relativePath(ref *firestore.DocumentRef) string {
	if ref.Parent.Parent == nil {
		return Join(ref.Parent.ID, ref.ID)
	}
	return Join(relativePath(ref.Parent.Parent), ref.Parent.ID, ref.ID)
}

func (f *Firestore) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}

	snap, err := f.client.Doc(path).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting %s: %w", path, classify(err))
	}

	doc := fromSnapshot(snap)
	return &doc, nil
}

func (f *Firestore) Set(ctx context.Context, path string, data map[string]any) error {
	if _, _, err := splitPath(path); err != nil {
		return err
	}
	if _, err := f.client.Doc(path).Set(ctx, data); err != nil {
		return fmt.Errorf("error setting %s: %w", path, classify(err))
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := splitPath(path); err != nil {
		return err
	}
	if _, err := f.client.Doc(path).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("error updating %s: %w", path, classify(err))
	}
	return nil
}

func (f *Firestore) Increment(ctx context.Context, path string, field string, delta int64) error {
	if _, _, err := splitPath(path); err != nil {
		return err
	}
	_, err := f.client.Doc(path).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.Increment(delta)},
	})
	if err != nil {
		return fmt.Errorf("error incrementing %s.%s: %w", path, field, classify(err))
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, path string) error {
	if _, _, err := splitPath(path); err != nil {
		return err
	}
	if _, err := f.client.Doc(path).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting %s: %w", path, classify(err))
	}
	return nil
}

func (f *Firestore) Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error) {
	fq, err := f.buildQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	it := fq.Snapshots(ctx)

	sub := &firestoreSubscription{cancel: cancel, it: it, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for {
			snap, err := it.Next()
			if err != nil {
				// iterator.Done or a cancelled context ends the stream
				return
			}

			snaps, err := snap.Documents.GetAll()
			if err != nil {
				continue
			}

			docs := make([]Document, 0, len(snaps))
			for _, ds := range snaps {
				docs = append(docs, fromSnapshot(ds))
			}
			fn(docs)
		}
	}()

	return sub, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

type firestoreSubscription struct {
	cancel context.CancelFunc
	it     *firestore.QuerySnapshotIterator
	done   chan struct{}
	once   sync.Once
}

func (s *firestoreSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.it.Stop()
	})
	return nil
}

// classify maps grpc status codes onto package errors.
func classify(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return err
}
