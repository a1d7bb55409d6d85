package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"haptix/internal/domain/workflow/port"
	applog "haptix/internal/platform/log"
)

// SessionStoreConfig Redis 会话存储配置
type SessionStoreConfig struct {
	Client    *redis.Client
	KeyPrefix string        // 默认 "haptix:session:"
	TTL       time.Duration // 默认 4h
}

// SessionStore Redis 实现的 port.SessionStore。
// 会话 JSON 存于 String 并带 TTL，另有 ZSET 索引（score 为过期时间）用于列举
type SessionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// NewSessionStore 创建 Redis 会话存储
func NewSessionStore(cfg SessionStoreConfig) *SessionStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "haptix:session:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 4 * time.Hour
	}
	return &SessionStore{
		client:    cfg.Client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		now:       time.Now,
	}
}

func (s *SessionStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *SessionStore) indexKey() string {
	return s.keyPrefix + "index"
}

// Save 写入会话并刷新 TTL
func (s *SessionStore) Save(ctx context.Context, sess *port.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(sess.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(s.now().Add(s.ttl).Unix()),
		Member: sess.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		applog.Error("[Session/Redis] save failed", "session_id", sess.ID, "error", err)
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// Get 读取会话
func (s *SessionStore) Get(ctx context.Context, id string) (*port.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, port.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var sess port.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete 删除会话
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// List 先清理索引中已过期的成员，再返回剩余会话 ID
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("redis prune session index: %w", err)
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list sessions: %w", err)
	}
	return ids, nil
}

// Ping 检查连接
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
