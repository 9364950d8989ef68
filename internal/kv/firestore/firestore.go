// Package firestore stores kv pairs as one Firestore document per key.
package firestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ahorro/internal/kv"
)

const DefaultCollection = "ahorro_kv"

type document struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type Store struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

var _ kv.Store = (*Store)(nil)

// New connects to projectID using application default credentials.
func New(ctx context.Context, projectID, collection string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return NewWithClient(client, collection), nil
}

func NewWithClient(client *firestore.Client, collection string) *Store {
	if strings.TrimSpace(collection) == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection, now: time.Now}
}

func (s *Store) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.col().Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	var doc document
	if err := snap.DataTo(&doc); err != nil {
		return "", false, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := validID(key); err != nil {
		return err
	}
	if _, err := s.col().Doc(key).Set(ctx, document{Value: value, UpdatedAt: s.now().UTC()}); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Firestore rejects transactions with more writes than this.
const maxWritesPerTransaction = 500

// SetMany writes pairs in transactions of at most 500 writes. Batches up to
// that size are atomic; larger ones are applied chunk by chunk in key order.
func (s *Store) SetMany(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	for k := range pairs {
		if err := validID(k); err != nil {
			return err
		}
	}
	now := s.now().UTC()
	for _, chunk := range chunkKeys(pairs, maxWritesPerTransaction) {
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, k := range chunk {
				if err := tx.Set(s.col().Doc(k), document{Value: pairs[k], UpdatedAt: now}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("set many: %w", err)
		}
	}
	return nil
}

func chunkKeys(pairs map[string]string, size int) [][]string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var chunks [][]string
	for len(keys) > size {
		chunks = append(chunks, keys[:size:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}

// validID reports keys that cannot be used as a document id.
func validID(key string) error {
	if key == "" || key == "." || key == ".." || strings.Contains(key, "/") || len(key) > 1500 {
		return fmt.Errorf("%w: %q", kv.ErrInvalidKey, key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.col().Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists document ids with the given prefix in lexical order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	iter := s.col().DocumentRefs(ctx)
	var out []string
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list keys: %w", err)
		}
		if strings.HasPrefix(ref.ID, prefix) {
			out = append(out, ref.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
