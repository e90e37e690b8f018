// Package redis publishes transformation outcomes to Redis so tools outside
// the process can follow what a runtime made live.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/kiln/internal/pipeline"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "kiln:"

// Recorder implements pipeline.Recorder. Outcomes of a domain live in a hash
// keyed by unit name, and a sorted set orders them by time.
type Recorder struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Recorder)

// WithTTL expires the keys of a domain ttl after its last outcome.
func WithTTL(ttl time.Duration) Option {
	return func(r *Recorder) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Recorder) {
		r.prefix = prefix
	}
}

// New connects to the Redis server described by url, for example
// redis://localhost:6379/0.
func New(url string, opts ...Option) (*Recorder, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(o), opts...), nil
}

// NewFromClient creates a recorder over an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Recorder {
	r := &Recorder{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) outcomesKey(domain string) string {
	return r.prefix + "outcomes:" + domain
}

func (r *Recorder) timelineKey(domain string) string {
	return r.prefix + "timeline:" + domain
}

// Record stores rec, replacing any earlier outcome of the same unit.
func (r *Recorder) Record(ctx context.Context, rec pipeline.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.outcomesKey(rec.Domain), rec.Unit, data)
	pipe.ZAdd(ctx, r.timelineKey(rec.Domain), backend.Z{
		Score:  float64(rec.At.UnixNano()),
		Member: rec.Unit,
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, r.outcomesKey(rec.Domain), r.ttl)
		pipe.Expire(ctx, r.timelineKey(rec.Domain), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save outcome to redis: %w", err)
	}
	return nil
}

// Outcome returns the recorded outcome of one unit. The boolean is false
// when nothing was recorded.
func (r *Recorder) Outcome(ctx context.Context, domain, name string) (pipeline.Record, bool, error) {
	val, err := r.client.HGet(ctx, r.outcomesKey(domain), name).Result()
	if err == backend.Nil {
		return pipeline.Record{}, false, nil
	}
	if err != nil {
		return pipeline.Record{}, false, fmt.Errorf("failed to get outcome from redis: %w", err)
	}

	var rec pipeline.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return pipeline.Record{}, false, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	return rec, true, nil
}

// Timeline lists the units of domain in the order their outcomes arrived.
func (r *Recorder) Timeline(ctx context.Context, domain string) ([]string, error) {
	names, err := r.client.ZRange(ctx, r.timelineKey(domain), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return names, nil
}

// Close closes the redis client.
func (r *Recorder) Close() error {
	return r.client.Close()
}
