// Package visitor persists anonymous landing page visitor state in Redis: the
// instant a visitor was first seen and the visitor's experiment assignments.
// Experiment counters shared by all visitors live here as well.
package visitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

// NewStore creates a new Store instance. Visitor keys expire after retention.
func NewStore(redis *redis.Client, retention time.Duration) *Store {
	return &Store{redis: redis, retention: retention}
}

// Store manages visitor state.
type Store struct {
	redis     *redis.Client
	retention time.Duration
}

// FirstSeen retrieves the instant the visitor was first seen. If the visitor
// has never been seen, now is stored and returned. Every call restarts the
// retention period.
func (s Store) FirstSeen(ctx context.Context, visitorID string, now time.Time) (time.Time, error) {
	key := keygen(firstSeenPrefix, visitorID)

	b, err := encode(now.UTC())
	if err != nil {
		return time.Time{}, err
	}

	var get *redis.StringCmd
	if _, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, b, s.retention)
		pipe.Expire(ctx, key, s.retention)
		get = pipe.Get(ctx, key)
		return nil
	}); err != nil {
		return time.Time{}, fmt.Errorf("while storing first seen; visitor: %s, error: %w", visitorID, err)
	}

	res, err := get.Bytes()
	if err != nil {
		return time.Time{}, fmt.Errorf("while retrieving first seen; visitor: %s, error: %w", visitorID, err)
	}

	var firstSeen time.Time
	if err := decode(res, &firstSeen); err != nil {
		return time.Time{}, fmt.Errorf("while decoding first seen; visitor: %s, error: %w", visitorID, err)
	}
	return firstSeen, nil
}

// Assignment retrieves the visitor's stored variant of the experiment. The
// visitor's assignments and conversions restart their retention period.
func (s Store) Assignment(ctx context.Context, visitorID, experimentKey string) (string, bool, error) {
	key := keygen(assignmentsPrefix, visitorID)

	var hget *redis.StringCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hget = pipe.HGet(ctx, key, experimentKey)
		pipe.Expire(ctx, key, s.retention)
		pipe.Expire(ctx, keygen(convertedPrefix, visitorID), s.retention)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false, fmt.Errorf("while retrieving assignment; visitor: %s, error: %w", visitorID, err)
	}

	res, err := hget.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("while retrieving assignment; visitor: %s, error: %w", visitorID, err)
	}
	return res, true, nil
}

// setAssignment stores ARGV[2] under field ARGV[1] of the assignments hash
// unless the field exists, and counts an exposure of the variant when it was
// stored.
var setAssignment = redis.NewScript(`
local set = redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
if set == 1 then
	redis.call("HINCRBY", KEYS[2], ARGV[2], 1)
	return {1, ARGV[2]}
end
return {0, redis.call("HGET", KEYS[1], ARGV[1])}
`)

// SetAssignment stores variant as the visitor's variant of the experiment,
// unless one is stored already, and returns the stored variant. Storing the
// variant and counting its exposure happen atomically; set reports whether
// this call did both.
func (s Store) SetAssignment(
	ctx context.Context,
	visitorID, experimentKey, variant string,
) (stored string, set bool, err error) {
	res, err := setAssignment.Run(
		ctx,
		s.redis,
		[]string{keygen(assignmentsPrefix, visitorID), keygen(exposuresPrefix, experimentKey)},
		experimentKey,
		variant,
		s.retention.Milliseconds(),
	).Slice()
	if err != nil {
		return "", false, fmt.Errorf("while storing assignment; visitor: %s, error: %w", visitorID, err)
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("unexpected assignment reply; visitor: %s, reply: %v", visitorID, res)
	}

	flag, _ := res[0].(int64)
	stored, ok := res[1].(string)
	if !ok {
		return "", false, fmt.Errorf("assignment vanished; visitor: %s, experiment: %s", visitorID, experimentKey)
	}
	return stored, flag == 1, nil
}

// convert flags field ARGV[1] of the conversions hash and counts a conversion
// of variant ARGV[2] when the flag was not yet set.
var convert = redis.NewScript(`
local set = redis.call("HSETNX", KEYS[1], ARGV[1], "1")
redis.call("PEXPIRE", KEYS[1], ARGV[3])
if set == 1 then
	redis.call("HINCRBY", KEYS[2], ARGV[2], 1)
end
return set
`)

// Convert flags the visitor as converted on the experiment and counts a
// conversion of variant, atomically. True is returned only by the call that
// set the flag.
func (s Store) Convert(ctx context.Context, visitorID, experimentKey, variant string) (bool, error) {
	set, err := convert.Run(
		ctx,
		s.redis,
		[]string{keygen(convertedPrefix, visitorID), keygen(conversionsPrefix, experimentKey)},
		experimentKey,
		variant,
		s.retention.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("while converting; visitor: %s, error: %w", visitorID, err)
	}
	return set == 1, nil
}

// Counts retrieves the exposure and conversion counters of every variant of
// the experiment.
func (s Store) Counts(ctx context.Context, experimentKey string) (map[string]int64, map[string]int64, error) {
	exposures, err := s.counters(ctx, keygen(exposuresPrefix, experimentKey))
	if err != nil {
		return nil, nil, fmt.Errorf("while retrieving exposures; experiment: %s, error: %w", experimentKey, err)
	}
	conversions, err := s.counters(ctx, keygen(conversionsPrefix, experimentKey))
	if err != nil {
		return nil, nil, fmt.Errorf("while retrieving conversions; experiment: %s, error: %w", experimentKey, err)
	}
	return exposures, conversions, nil
}

func (s Store) counters(ctx context.Context, key string) (map[string]int64, error) {
	res, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	counters := make(map[string]int64, len(res))
	for field, value := range res {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse counter %s: %w", field, err)
		}
		counters[field] = n
	}
	return counters, nil
}

// --- helpers ---

const (
	firstSeenPrefix   = "wa-visitor-first-seen"
	assignmentsPrefix = "wa-visitor-assignments"
	convertedPrefix   = "wa-visitor-converted"
	exposuresPrefix   = "wa-experiment-exposures"
	conversionsPrefix = "wa-experiment-conversions"
)

func keygen(prefix, id string) string {
	return fmt.Sprintf("%s-%s", prefix, id)
}

func encode(obj interface{}) ([]byte, error) {
	return msgpack.Marshal(obj)
}

func decode(b []byte, obj interface{}) error {
	return msgpack.Unmarshal(b, obj)
}
