// Package redis stores checkout sessions in Redis so that several API
// instances can serve the same visitor.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/techstore/internal/domain/checkout"
)

const keyPrefix = "techstore:checkout:"

var _ checkout.Store = (*SessionStore)(nil)

// SessionStore implements checkout.Store with one JSON value per session.
// Redis key expiry enforces the session TTL.
type SessionStore struct {
	client goredis.UniversalClient
}

// NewSessionStore returns a SessionStore using client.
func NewSessionStore(client goredis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *SessionStore) Get(ctx context.Context, id string) (*checkout.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, checkout.ErrSessionNotFound
		}
		return nil, errors.Wrapf(err, "get session %s", id)
	}

	var sess checkout.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrapf(err, "decode session %s", id)
	}
	return &sess, nil
}

// Save writes sess if the stored version still matches sess.Version. The
// check and the write run in a WATCH transaction, so a concurrent writer
// makes the transaction fail with ErrSessionConflict.
func (s *SessionStore) Save(ctx context.Context, sess *checkout.Session, ttl time.Duration) error {
	k := key(sess.ID)
	next := *sess
	next.Version++
	data, err := json.Marshal(&next)
	if err != nil {
		return errors.Wrapf(err, "encode session %s", sess.ID)
	}

	err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
		stored, err := storedVersion(ctx, tx, k)
		if err != nil {
			return err
		}
		if err := checkout.CheckVersion(stored, sess.Version); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, k, data, ttl)
			return nil
		})
		return err
	}, k)
	switch {
	case err == nil:
		sess.Version = next.Version
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		return checkout.ErrSessionConflict
	case errors.Is(err, checkout.ErrSessionConflict), errors.Is(err, checkout.ErrSessionNotFound):
		return err
	default:
		return errors.Wrapf(err, "set session %s", sess.ID)
	}
}

// storedVersion reads the version of the session stored under k, or 0 when
// there is none.
func storedVersion(ctx context.Context, tx *goredis.Tx, k string) (int64, error) {
	data, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, errors.Wrap(err, "decode stored version")
	}
	return v.Version, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return errors.Wrapf(err, "delete session %s", id)
	}
	return nil
}

// Options configures NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", opts.Addr)
	}
	return client, nil
}
