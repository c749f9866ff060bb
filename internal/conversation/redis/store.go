package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Shivansh-2508/AI-DB/internal/conversation"
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type client interface {
	goredis.Scripter
	LRange(ctx context.Context, key string, start, stop int64) *goredis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// Store keeps each transcript as a list of JSON turns plus a hash from message id to list
// position, so an idempotent append can overwrite in place.
type Store struct {
	client client
	prefix string
	now    func() time.Time
}

// appendScript: KEYS[1] list, KEYS[2] id index; ARGV[1] message id ("" for none), ARGV[2] payload.
var appendScript = goredis.NewScript(`
local id = ARGV[1]
if id ~= '' then
  local pos = redis.call('HGET', KEYS[2], id)
  if pos then
    redis.call('LSET', KEYS[1], tonumber(pos), ARGV[2])
    return 0
  end
end
local size = redis.call('RPUSH', KEYS[1], ARGV[2])
if id ~= '' then
  redis.call('HSET', KEYS[2], id, size - 1)
end
return 1
`)

func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(rdb, cfg.KeyPrefix), nil
}

func NewWithClient(c client, prefix string) *Store {
	return &Store{
		client: c,
		prefix: strings.Trim(strings.TrimSpace(prefix), ":"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *Store) listKey(key string) string {
	if s.prefix == "" {
		return "chat:" + key
	}
	return s.prefix + ":chat:" + key
}

func (s *Store) indexKey(key string) string {
	return s.listKey(key) + ":ids"
}

func (s *Store) Append(ctx context.Context, key string, turn conversation.Turn) error {
	if key == "" {
		return conversation.ErrInvalidKey
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	keys := []string{s.listKey(key), s.indexKey(key)}
	if err := appendScript.Run(ctx, s.client, keys, turn.MessageID, string(payload)).Err(); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, key string) ([]conversation.Turn, error) {
	if key == "" {
		return nil, conversation.ErrInvalidKey
	}
	raw, err := s.client.LRange(ctx, s.listKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return decodeTurns(raw), nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	if key == "" {
		return conversation.ErrInvalidKey
	}
	if err := s.client.Del(ctx, s.listKey(key), s.indexKey(key)).Err(); err != nil {
		return fmt.Errorf("clear chat messages: %w", err)
	}
	return nil
}

func decodeTurns(raw []string) []conversation.Turn {
	turns := make([]conversation.Turn, 0, len(raw))
	for _, entry := range raw {
		var decoded any
		if err := json.Unmarshal([]byte(entry), &decoded); err != nil {
			decoded = entry
		}
		turns = append(turns, conversation.DecodeAny(decoded))
	}
	return turns
}
