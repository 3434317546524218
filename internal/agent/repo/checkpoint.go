// Package repo persists conversation snapshots and transcripts and serializes turns per session.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisCheckpointStore keeps one JSON snapshot per session plus an index set
// used for listing.
type RedisCheckpointStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisCheckpointStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisCheckpointStore) stateKey(sessionID string) string {
	return fmt.Sprintf("%sconversation:%s:state", r.prefix, sessionID)
}

func (r *RedisCheckpointStore) indexKey() string {
	return r.prefix + "conversations"
}

func (r *RedisCheckpointStore) Load(ctx context.Context, sessionID string) (*model.ConversationState, error) {
	key := r.stateKey(sessionID)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.ErrSessionNotFound
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		return nil, errx.WrapRedis(err)
	}
	var st model.ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to unmarshal checkpoint")
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &st, nil
}

// Save writes the snapshot and refreshes its TTL.
func (r *RedisCheckpointStore) Save(ctx context.Context, st *model.ConversationState) error {
	b, err := json.Marshal(st)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", st.SessionID).Msg("failed to marshal checkpoint")
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	key := r.stateKey(st.SessionID)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, b, r.ttl)
		p.SAdd(ctx, r.indexKey(), st.SessionID)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save checkpoint to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisCheckpointStore) Delete(ctx context.Context, sessionID string) error {
	key := r.stateKey(sessionID)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.SRem(ctx, r.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete checkpoint from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// List returns live session ids, pruning index entries whose snapshot expired.
func (r *RedisCheckpointStore) List(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.rdb.Exists(ctx, r.stateKey(id)).Result()
		if err != nil {
			return nil, errx.WrapRedis(err)
		}
		if n == 0 {
			if err := r.rdb.SRem(ctx, r.indexKey(), id).Err(); err != nil {
				logx.Warn().Err(err).Str("sessionID", id).Msg("failed to prune expired session from index")
			}
			continue
		}
		live = append(live, id)
	}
	sort.Strings(live)
	return live, nil
}

var _ model.CheckpointStore = (*RedisCheckpointStore)(nil)
