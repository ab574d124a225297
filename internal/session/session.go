// Package session provides a hookable key/value session with expiry.
//
// A session keeps its values in memory and, when given a store, persists
// them to a cache under "session_<id>". A session whose timeout has passed
// when it is resumed, or whose record is gone, is recreated with a fresh
// identifier.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/chzapp/internal/cache"
	"github.com/dshills/chzapp/internal/component"
)

// MinTimeout is the shortest timeout a session accepts.
const MinTimeout = time.Minute

// recordLifetime is the stored record's lifetime in session timeouts.
const recordLifetime = 2

// ErrInvalidName is returned for an empty value name.
var ErrInvalidName = errors.New("session value name must not be empty")

// Option configures a session.
type Option func(*Session)

// WithID resumes the session stored under id.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithTimeout sets the session lifetime. Zero disables expiry; positive
// values below MinTimeout are raised to it.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithStore persists the session in c.
func WithStore(c cache.Cache) Option {
	return func(s *Session) {
		s.store = c
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithComponentOptions passes options through to component setup.
func WithComponentOptions(opts ...component.Option) Option {
	return func(s *Session) {
		s.component = append(s.component, opts...)
	}
}

// Session is a hookable component holding named values.
type Session struct {
	component.Component

	id        string
	timeout   time.Duration
	store     cache.Cache
	now       func() time.Time
	component []component.Option

	values  map[string]any
	created time.Time
	expires time.Time
}

// New starts a session owned by app.
func New(app component.Context, opts ...Option) (*Session, error) {
	s := &Session{
		now:    time.Now,
		values: make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout < 0 {
		s.timeout = 0
	}
	if s.timeout > 0 && s.timeout < MinTimeout {
		s.timeout = MinTimeout
	}
	if err := s.Setup(s, app, s.component...); err != nil {
		return nil, err
	}
	return s, nil
}

// CanHook implements component.Hookable.
func (s *Session) CanHook() bool { return true }

// Exports implements component.Exporter.
func (s *Session) Exports() map[string]func(args ...any) (any, error) {
	ctx := context.Background()
	name := func(args []any) (string, error) {
		if len(args) == 0 {
			return "", ErrInvalidName
		}
		n, _ := args[0].(string)
		if n == "" {
			return "", ErrInvalidName
		}
		return n, nil
	}
	return map[string]func(args ...any) (any, error){
		"SessionID": func(args ...any) (any, error) { return s.SessionID(), nil },
		"Value": func(args ...any) (any, error) {
			n, err := name(args)
			if err != nil {
				return nil, err
			}
			v, _ := s.Value(n)
			return v, nil
		},
		"Has": func(args ...any) (any, error) {
			n, err := name(args)
			if err != nil {
				return nil, err
			}
			return s.Has(n), nil
		},
		"Set": func(args ...any) (any, error) {
			n, err := name(args)
			if err != nil {
				return nil, err
			}
			var v any
			if len(args) > 1 {
				v = args[1]
			}
			return nil, s.Set(ctx, n, v)
		},
		"Unset": func(args ...any) (any, error) {
			n, err := name(args)
			if err != nil {
				return nil, err
			}
			return nil, s.Unset(ctx, n)
		},
		"Recreate": func(args ...any) (any, error) {
			deleteOld := false
			if len(args) > 0 {
				deleteOld, _ = args[0].(bool)
			}
			return nil, s.Recreate(ctx, deleteOld)
		},
	}
}

// Init implements component.Initializer. A new session starts its lifetime
// here. A resumed session keeps the lifetime it was stored with. When the
// stored session has expired, or no record exists for the requested id, the
// session moves to a fresh identifier and starts a new lifetime.
func (s *Session) Init() error {
	ctx := context.Background()
	if s.id == "" {
		s.id = uuid.NewString()
		s.start()
		return s.save(ctx)
	}
	if s.store == nil {
		s.start()
		return nil
	}

	found, err := s.load(ctx)
	if err != nil {
		return err
	}
	switch {
	case !found || s.created.IsZero():
		s.Logger().Debug("session not found", "session", s.id)
		return s.renew(ctx)
	case s.Expired():
		s.Logger().Debug("session expired", "session", s.id, "expires", s.expires)
		return s.renew(ctx)
	}
	return nil
}

// renew starts a new lifetime under a fresh identifier, keeping the values.
func (s *Session) renew(ctx context.Context) error {
	s.expires = time.Time{}
	s.start()
	return s.Recreate(ctx, false)
}

func (s *Session) start() {
	s.created = s.now()
	if s.timeout > 0 {
		s.expires = s.created.Add(s.timeout)
	}
}

// SessionID returns the session identifier.
func (s *Session) SessionID() string { return s.id }

// Created returns when the current session lifetime started.
func (s *Session) Created() time.Time { return s.created }

// Expires returns when the session expires. The zero time means never.
func (s *Session) Expires() time.Time { return s.expires }

// Timeout returns the effective session lifetime.
func (s *Session) Timeout() time.Duration { return s.timeout }

// Expired reports whether the session's lifetime has passed.
func (s *Session) Expired() bool {
	return !s.expires.IsZero() && s.expires.Before(s.now())
}

// Value returns the value stored under name.
func (s *Session) Value(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Has reports whether name is set.
func (s *Session) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Keys returns the value names in sorted order.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores value under name and fires "set".
func (s *Session) Set(ctx context.Context, name string, value any) error {
	if name == "" {
		return ErrInvalidName
	}
	s.values[name] = value
	if err := s.save(ctx); err != nil {
		return err
	}
	return s.Emit("set", name, value)
}

// Unset removes name and fires "unset". Unsetting a missing name does nothing.
func (s *Session) Unset(ctx context.Context, name string) error {
	if _, ok := s.values[name]; !ok {
		return nil
	}
	delete(s.values, name)
	if err := s.save(ctx); err != nil {
		return err
	}
	return s.Emit("unset", name)
}

// Recreate moves the session to a new identifier, keeping its values, and
// fires "recreate" with the old and new identifiers. deleteOld removes the
// record stored under the old identifier.
func (s *Session) Recreate(ctx context.Context, deleteOld bool) error {
	old := s.id
	s.id = uuid.NewString()

	if s.store != nil && deleteOld && old != "" {
		if _, err := s.store.Remove(ctx, storeIndex(old)); err != nil {
			return fmt.Errorf("removing session %s: %w", old, err)
		}
	}
	if err := s.save(ctx); err != nil {
		return err
	}
	return s.Emit("recreate", old, s.id)
}

func storeIndex(id string) string { return "session_" + id }

func (s *Session) save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	record := map[string]any{
		"values":  values,
		"created": unixMilli(s.created),
		"expires": unixMilli(s.expires),
	}

	// The record outlives the session by one timeout so an expired session
	// can still be recreated with its values.
	ttl := cache.NoExpiry
	if s.timeout > 0 {
		ttl = recordLifetime * s.timeout
	}
	if _, err := s.store.Create(ctx, storeIndex(s.id), record, ttl); err != nil {
		return fmt.Errorf("saving session %s: %w", s.id, err)
	}
	return nil
}

// load reads the stored record for the current id and reports whether one
// was found.
func (s *Session) load(ctx context.Context) (bool, error) {
	v, ok, err := s.store.Get(ctx, storeIndex(s.id))
	if err != nil {
		return false, fmt.Errorf("loading session %s: %w", s.id, err)
	}
	if !ok {
		return false, nil
	}
	record, _ := v.(map[string]any)
	if values, ok := record["values"].(map[string]any); ok {
		for k, v := range values {
			s.values[k] = v
		}
	}
	s.created = fromUnixMilli(record["created"])
	s.expires = fromUnixMilli(record["expires"])
	return true, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// fromUnixMilli accepts the numeric shapes a cache may hand back.
func fromUnixMilli(v any) time.Time {
	var ms int64
	switch n := v.(type) {
	case int64:
		ms = n
	case int:
		ms = int64(n)
	case float64:
		ms = int64(n)
	}
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
