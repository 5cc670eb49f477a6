package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

type fakeCommandTag struct {
	rowsAffected int64
}

func (t fakeCommandTag) RowsAffected() int64 {
	return t.rowsAffected
}

type fakeRow struct {
	values []any
	err    error
}

func rowFromValues(values ...any) *fakeRow {
	return &fakeRow{values: values}
}

func rowWithError(err error) *fakeRow {
	return &fakeRow{err: err}
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignValues(dest, r.values)
}

type fakeRows struct {
	rows   [][]any
	idx    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return errors.New("scan called without row")
	}
	return assignValues(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Close() {
	r.closed = true
}

func (r *fakeRows) Err() error {
	return r.err
}

// assignValues copies values into scan destinations the way pgx would for
// the handful of types the services use.
func assignValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(values), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Ptr || dv.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		target := dv.Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		switch {
		case v.Type().AssignableTo(target.Type()):
			target.Set(v)
		case target.Kind() == reflect.Ptr && v.Type().AssignableTo(target.Type().Elem()):
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v)
			target.Set(p)
		case target.Kind() == reflect.Ptr && v.Type().ConvertibleTo(target.Type().Elem()):
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v.Convert(target.Type().Elem()))
			target.Set(p)
		case v.Type().ConvertibleTo(target.Type()):
			target.Set(v.Convert(target.Type()))
		default:
			return fmt.Errorf("scan: cannot assign %T to %s", values[i], target.Type())
		}
	}
	return nil
}

type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, args...)
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return rowWithError(errors.New("unexpected QueryRow"))
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx)
	}
	return nil, errors.New("unexpected Begin")
}

type fakeTx struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{}, nil
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, args...)
	}
	return &fakeRows{}, nil
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return rowWithError(errors.New("unexpected QueryRow"))
}

func (f *fakeTx) Commit(ctx context.Context) error {
	if f.CommitFunc != nil {
		return f.CommitFunc(ctx)
	}
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.RollbackFunc != nil {
		return f.RollbackFunc(ctx)
	}
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, message)
	return nil
}
