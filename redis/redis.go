package redis

import (
	"context"
	"errors"
	"github.com/cloudflare/cfssl/log"
	"github.com/go-redis/redis/v8"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Client struct {
	rdb *redis.Client
}

func NewClient(opt Options) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

//set
func (c *Client) SetIntoRedis(ctx context.Context, key string, value string) error {
	err := c.rdb.Set(ctx, key, value, 0).Err()
	if err != nil {
		log.Errorf("redis set %s error: %s", key, err)
	}
	return err
}

//get，key 不存在时返回空串
func (c *Client) GetFromRedis(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		log.Debugf("the key:%s does not exist", key)
		return "", nil
	}
	if err != nil {
		log.Errorf("redis get %s error: %s", key, err)
		return "", err
	}
	return val, nil
}

// list push，返回push之后列表的长度
func (c *Client) PushToList(ctx context.Context, key string, value string) (int64, error) {
	n, err := c.rdb.RPush(ctx, key, value).Result()
	if err != nil {
		log.Errorf("event push to list error: %s", err)
		return 0, err
	}
	return n, nil
}

// list range，stop 为闭区间，-1表示到末尾
func (c *Client) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

func (c *Client) ListLen(ctx context.Context, key string) (int64, error) {
	return c.rdb.LLen(ctx, key).Result()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
