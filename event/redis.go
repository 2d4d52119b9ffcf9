package event

import (
	"context"
	"github.com/cloudflare/cfssl/log"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/redis"
	"sync"
)

// RedisLog 将事件以json追加到 redis list，供多个看板共享
type RedisLog struct {
	mu     sync.Mutex
	client *redis.Client
	key    string
}

func NewRedisLog(client *redis.Client, key string) *RedisLog {
	return &RedisLog{client: client, key: key}
}

func (l *RedisLog) Append(ctx context.Context, e meta.StakeEvent) (meta.StakeEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.client.ListLen(ctx, l.key)
	if err != nil {
		return meta.StakeEvent{}, err
	}
	sealed, err := seal(e, uint64(n))
	if err != nil {
		return meta.StakeEvent{}, err
	}
	bs, err := encode(sealed)
	if err != nil {
		return meta.StakeEvent{}, err
	}
	length, err := l.client.PushToList(ctx, l.key, string(bs))
	if err != nil {
		return meta.StakeEvent{}, err
	}
	if length != n+1 {
		log.Warningf("stake log %s has another writer: expected length %d, got %d", l.key, n+1, length)
	}
	return copyEvent(sealed), nil
}

func (l *RedisLog) Range(ctx context.Context, from, to uint64) ([]meta.StakeEvent, error) {
	n, err := l.client.ListLen(ctx, l.key)
	if err != nil {
		return nil, err
	}
	from, to = clamp(from, to, uint64(n))
	res := make([]meta.StakeEvent, 0, to-from)
	if from == to {
		return res, nil
	}
	vals, err := l.client.ListRange(ctx, l.key, int64(from), int64(to)-1)
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		e, err := decode([]byte(v))
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func (l *RedisLog) Len(ctx context.Context) (uint64, error) {
	n, err := l.client.ListLen(ctx, l.key)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
