package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/valpere/bubbletran/internal"
)

const redisKeyPrefix = "bubbletran:context:"

// RedisStore keeps each conversation as a Redis list of JSON entries.
type RedisStore struct {
	client *redis.Client
	limits Limits
}

func NewRedisStore(ctx context.Context, redisURL string, limits Limits) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, limits: limits.withDefaults()}, nil
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}

func (s *RedisStore) GetRecent(ctx context.Context, conversationID string, limit int) ([]internal.ContextEntry, error) {
	if conversationID == "" {
		return nil, nil
	}
	n := int64(s.limits.resolve(limit))
	raw, err := s.client.LRange(ctx, redisKey(conversationID), -n, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read context: %w", err)
	}
	return decodeEntries(raw), nil
}

// decodeEntries skips elements that are not valid entries.
func decodeEntries(raw []string) []internal.ContextEntry {
	entries := make([]internal.ContextEntry, 0, len(raw))
	for _, item := range raw {
		var e internal.ContextEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func (s *RedisStore) Append(ctx context.Context, conversationID string, entries []internal.ContextEntry) error {
	if conversationID == "" {
		return nil
	}
	cleaned := cleanEntries(entries)
	if len(cleaned) == 0 {
		return nil
	}

	values := make([]any, 0, len(cleaned))
	for _, e := range cleaned {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode context entry: %w", err)
		}
		values = append(values, string(data))
	}

	key := redisKey(conversationID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -int64(s.limits.MaxEntries), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append context: %w", err)
	}
	return nil
}

func (s *RedisStore) Conversations(ctx context.Context) ([]Summary, error) {
	var (
		cursor uint64
		out    []Summary
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversations: %w", err)
		}
		for _, key := range keys {
			sum, err := s.summary(ctx, key)
			if err != nil {
				return nil, err
			}
			out = append(out, sum)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func (s *RedisStore) summary(ctx context.Context, key string) (Summary, error) {
	sum := Summary{ConversationID: strings.TrimPrefix(key, redisKeyPrefix)}
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return sum, fmt.Errorf("failed to count %s: %w", key, err)
	}
	sum.Entries = int(n)

	last, err := s.client.LIndex(ctx, key, -1).Result()
	if err != nil && err != redis.Nil {
		return sum, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if entries := decodeEntries([]string{last}); len(entries) == 1 {
		sum.LastUpdated = secondsToTime(entries[0].Timestamp)
	}
	return sum, nil
}

func (s *RedisStore) Clear(ctx context.Context, conversationID string) (int, error) {
	key := redisKey(conversationID)
	var llen *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		llen = pipe.LLen(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear conversation: %w", err)
	}
	return int(llen.Val()), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
