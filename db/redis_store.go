package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/juju/errors"

	"school-server-go/models"
)

// Key layout for a collection named c under prefix p:
//
//	p:c:records         Hash: id -> JSON record
//	p:c:seq             String: last assigned id
//	p:c:unique:<column> Hash: value -> id, one per unique column
const (
	recordsSuffix = ":records"
	seqSuffix     = ":seq"
	uniqueInfix   = ":unique:"
)

// RedisStore keeps one collection of records in Redis.
type RedisStore[T any, PT models.Entity[T]] struct {
	Client *redis.Client
	base   string
	unique []string
}

// NewRedisStore creates a store for collection, enforcing uniqueness on the
// given columns through HSETNX on a per-column index.
func NewRedisStore[T any, PT models.Entity[T]](client *redis.Client, prefix, collection string, unique ...string) *RedisStore[T, PT] {
	return &RedisStore[T, PT]{
		Client: client,
		base:   prefix + ":" + collection,
		unique: unique,
	}
}

// Helper to generate the records hash key
func (s *RedisStore[T, PT]) recordsKey() string {
	return s.base + recordsSuffix
}

// Helper to generate the id sequence key
func (s *RedisStore[T, PT]) seqKey() string {
	return s.base + seqSuffix
}

// Helper to generate a unique column index key
func (s *RedisStore[T, PT]) uniqueKey(column string) string {
	return s.base + uniqueInfix + column
}

func (s *RedisStore[T, PT]) isUnique(column string) bool {
	for _, c := range s.unique {
		if c == column {
			return true
		}
	}
	return false
}

func (s *RedisStore[T, PT]) FindBy(ctx context.Context, column string, value any) (*T, error) {
	if s.isUnique(column) {
		v, ok := value.(string)
		if !ok {
			return nil, nil
		}
		id, err := s.Client.HGet(ctx, s.uniqueKey(column), v).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Annotatef(err, "failed to look up %s in Redis", column)
		}
		return s.Get(ctx, id)
	}

	recs, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if PT(&recs[i]).Columns()[column] == value {
			return &recs[i], nil
		}
	}
	return nil, nil
}

func (s *RedisStore[T, PT]) List(ctx context.Context, column, pattern string) ([]T, error) {
	recs, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	result := []T{}
	for i := range recs {
		if columnMatches(PT(&recs[i]).Columns(), column, pattern) {
			result = append(result, recs[i])
		}
	}
	return result, nil
}

// all loads every record of the collection ordered by id.
func (s *RedisStore[T, PT]) all(ctx context.Context) ([]T, error) {
	data, err := s.Client.HGetAll(ctx, s.recordsKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Annotate(err, "failed to get records from Redis")
	}
	recs := make([]T, 0, len(data))
	for id, raw := range data {
		rec, err := decodeDoc[T]([]byte(raw))
		if err != nil {
			// Log the error but keep serving the readable records
			logger.Errorf("skipping record %s in %s: %v", id, s.recordsKey(), err)
			continue
		}
		recs = append(recs, *rec)
	}
	sortByID(recs, func(rec *T) uint { return PT(rec).PrimaryKey() })
	return recs, nil
}

func (s *RedisStore[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	if _, ok := parseID(id); !ok {
		return nil, nil
	}
	raw, err := s.Client.HGet(ctx, s.recordsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "failed to get record %s from Redis", id)
	}
	return decodeDoc[T]([]byte(raw))
}

func (s *RedisStore[T, PT]) Create(ctx context.Context, rec *T) error {
	next, err := s.Client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return errors.Annotate(err, "failed to allocate id in Redis")
	}
	id := strconv.FormatInt(next, 10)

	columns := PT(rec).Columns()
	var claimed []string
	for _, col := range s.unique {
		v, ok := columns[col].(string)
		if !ok {
			continue
		}
		ok, err := s.Client.HSetNX(ctx, s.uniqueKey(col), v, id).Result()
		if err != nil {
			s.release(ctx, claimed, columns)
			return errors.Annotatef(err, "failed to claim %s in Redis", col)
		}
		if !ok {
			s.release(ctx, claimed, columns)
			return errors.NewAlreadyExists(nil, fmt.Sprintf("%s %q already exists", col, v))
		}
		claimed = append(claimed, col)
	}

	PT(rec).SetPrimaryKey(uint(next))
	raw, err := encodeDoc(rec, time.Now().UTC(), true)
	if err != nil {
		s.release(ctx, claimed, columns)
		return err
	}
	if err := s.Client.HSet(ctx, s.recordsKey(), id, raw).Err(); err != nil {
		s.release(ctx, claimed, columns)
		PT(rec).SetPrimaryKey(0)
		return errors.Annotate(err, "failed to add record to Redis")
	}
	stored, err := decodeDoc[T](raw)
	if err != nil {
		return err
	}
	*rec = *stored
	return nil
}

// release drops unique index entries claimed by a failed write.
func (s *RedisStore[T, PT]) release(ctx context.Context, claimed []string, columns map[string]any) {
	for _, col := range claimed {
		v, _ := columns[col].(string)
		if err := s.Client.HDel(ctx, s.uniqueKey(col), v).Err(); err != nil {
			logger.Errorf("failed to release %s %q: %v", col, v, err)
		}
	}
}

func (s *RedisStore[T, PT]) Update(ctx context.Context, id string, values map[string]any) error {
	if _, ok := parseID(id); !ok {
		return nil
	}
	raw, err := s.Client.HGet(ctx, s.recordsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return errors.Annotatef(err, "failed to get record %s from Redis", id)
	}
	current, err := decodeDoc[T]([]byte(raw))
	if err != nil {
		return err
	}
	old := PT(current).Columns()

	var claimed []string
	for _, col := range s.unique {
		v, ok := values[col].(string)
		if !ok || v == old[col] {
			continue
		}
		ok, err := s.Client.HSetNX(ctx, s.uniqueKey(col), v, id).Result()
		if err != nil {
			s.release(ctx, claimed, values)
			return errors.Annotatef(err, "failed to claim %s in Redis", col)
		}
		if !ok {
			s.release(ctx, claimed, values)
			return errors.NewAlreadyExists(nil, fmt.Sprintf("%s %q already exists", col, v))
		}
		claimed = append(claimed, col)
	}

	patched, err := patchDoc([]byte(raw), values, time.Now().UTC())
	if err != nil {
		s.release(ctx, claimed, values)
		return err
	}

	pipe := s.Client.TxPipeline()
	pipe.HSet(ctx, s.recordsKey(), id, patched)
	for _, col := range s.unique {
		if _, touched := values[col]; !touched {
			continue
		}
		if v, ok := old[col].(string); ok && v != values[col] {
			pipe.HDel(ctx, s.uniqueKey(col), v)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Annotatef(err, "failed to update record %s in Redis", id)
	}
	return nil
}

func (s *RedisStore[T, PT]) Delete(ctx context.Context, id string) (int64, error) {
	rec, err := s.Get(ctx, id)
	if err != nil || rec == nil {
		return 0, err
	}
	columns := PT(rec).Columns()

	pipe := s.Client.TxPipeline()
	del := pipe.HDel(ctx, s.recordsKey(), id)
	for _, col := range s.unique {
		if v, ok := columns[col].(string); ok {
			pipe.HDel(ctx, s.uniqueKey(col), v)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Annotatef(err, "failed to delete record %s from Redis", id)
	}
	return del.Val(), nil
}

func (s *RedisStore[T, PT]) Ping(ctx context.Context) error {
	return errors.Trace(s.Client.Ping(ctx).Err())
}
