package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisConfig descreve uma coleção guardada no Redis.
type RedisConfig struct {
	Client   redis.UniversalClient
	Prefix   string
	Identity string
	Records  []Record
}

// RedisBackend guarda cada registro como JSON em um hash (<prefix>:records)
// e a ordem de armazenamento em uma lista (<prefix>:order).
// Identidades são normalizadas para string como chave do hash, então "3" e 3
// apontam para o mesmo registro.
type RedisBackend struct {
	mu       sync.Mutex
	client   redis.UniversalClient
	prefix   string
	identity string
	initial  []Record
	ids      *IdGenerator

	initOnce sync.Once
	initErr  error
}

var _ Backend = (*RedisBackend)(nil)

func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis backend: cliente nulo")
	}
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("redis backend: prefixo obrigatório")
	}
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	return &RedisBackend{
		client:   cfg.Client,
		prefix:   cfg.Prefix,
		identity: cfg.Identity,
		initial:  cloneRecords(cfg.Records),
	}, nil
}

// NewRedisCollection cria um Collection sobre o Redis.
func NewRedisCollection(cfg RedisConfig, opts ...Option) (*Collection, error) {
	o := buildOptions(opts)
	if cfg.Identity == "" {
		cfg.Identity = o.identity
	}
	b, err := NewRedisBackend(cfg)
	if err != nil {
		return nil, err
	}
	return New(b, opts...), nil
}

func (b *RedisBackend) recordsKey() string { return b.prefix + ":records" }
func (b *RedisBackend) orderKey() string   { return b.prefix + ":order" }

func (b *RedisBackend) Identity() string { return b.identity }

func (b *RedisBackend) IsInitialized(ctx context.Context) error {
	b.initOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.initErr = b.populate(ctx)
	})
	return b.initErr
}

func (b *RedisBackend) Reset(ctx context.Context) error {
	if err := b.IsInitialized(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.populate(ctx)
}

func (b *RedisBackend) populate(ctx context.Context) error {
	b.ids = NewIdGenerator(b.initial, b.identity)

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.recordsKey(), b.orderKey())
		for _, r := range b.initial {
			stored := r.Clone()
			if stored[b.identity] == nil {
				stored[b.identity] = b.ids.Next()
			}
			key, raw, err := b.encode(stored)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, b.recordsKey(), key, raw)
			pipe.RPush(ctx, b.orderKey(), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("falha ao popular %s: %w", b.prefix, err)
	}
	return nil
}

func (b *RedisBackend) Clear(ctx context.Context) ([]Record, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	removed, err := b.all(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.client.Del(ctx, b.recordsKey(), b.orderKey()).Err(); err != nil {
		return nil, fmt.Errorf("falha ao limpar %s: %w", b.prefix, err)
	}
	return removed, nil
}

func (b *RedisBackend) Count(ctx context.Context) (int, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return 0, err
	}
	n, err := b.client.LLen(ctx, b.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("falha ao contar %s: %w", b.prefix, err)
	}
	return int(n), nil
}

func (b *RedisBackend) Find(ctx context.Context, q Query) ([]Record, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.all(ctx)
	if err != nil {
		return nil, err
	}
	if len(q) == 0 {
		return records, nil
	}
	return Filter(records, q), nil
}

func (b *RedisBackend) FindOne(ctx context.Context, c Criteria) (Record, bool, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.findOne(ctx, c)
}

func (b *RedisBackend) findOne(ctx context.Context, c Criteria) (Record, bool, error) {
	switch c.Kind() {
	case CriteriaIdentity:
		v, _ := c.Identity()
		return b.get(ctx, identityKey(v))
	case CriteriaQuery:
		records, err := b.all(ctx)
		if err != nil {
			return nil, false, err
		}
		idx := c.locate(records, b.identity)
		if idx < 0 {
			return nil, false, nil
		}
		return records[idx], true, nil
	default:
		key, err := b.client.LIndex(ctx, b.orderKey(), 0).Result()
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("falha ao ler %s: %w", b.prefix, err)
		}
		return b.get(ctx, key)
	}
}

func (b *RedisBackend) PerformInsert(ctx context.Context, r Record) (Record, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := r.Clone()
	if stored == nil {
		stored = Record{}
	}
	if stored[b.identity] == nil {
		stored[b.identity] = b.ids.Next()
	}
	key, raw, err := b.encode(stored)
	if err != nil {
		return nil, err
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.recordsKey(), key, raw)
		pipe.RPush(ctx, b.orderKey(), key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao inserir em %s: %w", b.prefix, err)
	}
	return stored, nil
}

func (b *RedisBackend) PerformUpdateOne(ctx context.Context, c Criteria, patch Record) (Record, bool, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	original, found, err := b.findOne(ctx, c)
	if err != nil || !found {
		return nil, false, err
	}

	updated := original.Merge(patch)
	updated[b.identity] = original[b.identity]
	key, raw, err := b.encode(updated)
	if err != nil {
		return nil, false, err
	}
	if err := b.client.HSet(ctx, b.recordsKey(), key, raw).Err(); err != nil {
		return nil, false, fmt.Errorf("falha ao atualizar %s: %w", b.prefix, err)
	}
	return updated, true, nil
}

func (b *RedisBackend) PerformDeleteOne(ctx context.Context, c Criteria) (Record, bool, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	target, found, err := b.findOne(ctx, c)
	if err != nil || !found {
		return nil, false, err
	}

	key := identityKey(target[b.identity])
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, b.recordsKey(), key)
		pipe.LRem(ctx, b.orderKey(), 1, key)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("falha ao remover de %s: %w", b.prefix, err)
	}
	return target, true, nil
}

func (b *RedisBackend) get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := b.client.HGet(ctx, b.recordsKey(), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("falha ao ler %s: %w", b.prefix, err)
	}
	r, err := decodeRecord(raw)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// all lê os registros na ordem da lista.
func (b *RedisBackend) all(ctx context.Context) ([]Record, error) {
	keys, err := b.client.LRange(ctx, b.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("falha ao listar %s: %w", b.prefix, err)
	}
	if len(keys) == 0 {
		return []Record{}, nil
	}

	values, err := b.client.HMGet(ctx, b.recordsKey(), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("falha ao ler %s: %w", b.prefix, err)
	}

	records := make([]Record, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (b *RedisBackend) encode(r Record) (string, string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", "", fmt.Errorf("falha ao serializar registro: %w", err)
	}
	return identityKey(r[b.identity]), string(raw), nil
}

func decodeRecord(raw string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("falha ao desserializar registro: %w", err)
	}
	return r, nil
}

func identityKey(v any) string {
	if isNumber(v) {
		return formatNumber(v)
	}
	return fmt.Sprint(v)
}
