// Package valkeystore archives finished sessions in a Valkey (or Redis) server.
// Sessions are stored as JSON under their own key and indexed by a capped
// list of ids, newest first.
package valkeystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/OktayBayram/nyx-game/internal/models"
	"github.com/OktayBayram/nyx-game/internal/storage"
)

const defaultPrefix = "nyx"

type Options struct {
	Prefix string
	Size   int
	TTL    time.Duration
}

type SessionStore struct {
	client valkey.Client
	prefix string
	size   int
	ttl    time.Duration
}

// Dial connects to addr and checks the connection with a PING.
func Dial(ctx context.Context, addr string, opts Options) (*SessionStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect valkey %s: %w", addr, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey %s: %w", addr, err)
	}
	return New(client, opts), nil
}

// New wraps an existing client.
func New(client valkey.Client, opts Options) *SessionStore {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.Size < 1 {
		opts.Size = 100
	}
	return &SessionStore{client: client, prefix: opts.Prefix, size: opts.Size, ttl: opts.TTL}
}

func (s *SessionStore) indexKey() string {
	return s.prefix + ":sessions"
}

func (s *SessionStore) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

func (s *SessionStore) Save(ctx context.Context, session models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	set := s.client.B().Set().Key(s.sessionKey(session.ID)).Value(string(data))
	var setCmd valkey.Completed
	if s.ttl > 0 {
		setCmd = set.ExSeconds(int64(s.ttl / time.Second)).Build()
	} else {
		setCmd = set.Build()
	}
	cmds := valkey.Commands{
		setCmd,
		s.client.B().Lpush().Key(s.indexKey()).Element(session.ID).Build(),
		s.client.B().Ltrim().Key(s.indexKey()).Start(0).Stop(int64(s.size - 1)).Build(),
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("save session %s: %w", session.ID, err)
		}
	}
	return nil
}

// Recent returns up to n sessions, newest first. Ids whose record has
// expired are skipped.
func (s *SessionStore) Recent(ctx context.Context, n int) ([]models.Session, error) {
	if n <= 0 || n > s.size {
		n = s.size
	}
	ids, err := s.client.Do(ctx, s.client.B().Lrange().Key(s.indexKey()).Start(0).Stop(int64(n-1)).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]models.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (models.Session, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.sessionKey(id)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return models.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return models.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

func (s *SessionStore) Close() error {
	s.client.Close()
	return nil
}
