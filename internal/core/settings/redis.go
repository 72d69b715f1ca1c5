package settings

import (
	"context"
	"encoding/json"
	"time"

	"lifekit-core/internal/constants"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/safe"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// RedisConfig redis 设置后端配置
type RedisConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	Password     string        `json:"password" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// changeMessage 设置变更通知载荷
type changeMessage struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Deleted bool   `json:"deleted"`
}

// RedisBackend redis 设置后端
// 全部键存放在单个 hash，变更经 pub/sub 频道广播；
// 广播尽力而为：写入成功后发布失败只告警，不回滚
type RedisBackend struct {
	client  *redis.Client
	hashKey string
	channel string
	logger  log.Logger

	// embedded 模式下持有内嵌服务，Close 一并停掉
	server *miniredis.Miniredis
}

// NewRedisBackend 连接外部 redis 创建设置后端
func NewRedisBackend(cfg *RedisConfig) (*RedisBackend, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, coreerrors.NewValidationError("addr", "redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, coreerrors.Wrap(err, coreerrors.CodeConnectionError, "redis connection failed")
	}
	return newRedisBackend(client, nil), nil
}

// NewEmbeddedRedisBackend 内嵌 redis（miniredis）设置后端
// 单机模式与测试用，无须外部依赖
func NewEmbeddedRedisBackend() (*RedisBackend, error) {
	server, err := miniredis.Run()
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "start embedded redis failed")
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return newRedisBackend(client, server), nil
}

// NewRedisBackendFromClient 复用已有客户端创建后端
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return newRedisBackend(client, nil)
}

func newRedisBackend(client *redis.Client, server *miniredis.Miniredis) *RedisBackend {
	return &RedisBackend{
		client:  client,
		hashKey: constants.KeyPrefixSettings,
		channel: constants.ChannelSettingsChanged,
		logger:  log.WithComponent("settings.redis"),
		server:  server,
	}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := b.client.HGet(ctx, b.hashKey, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.client.HSet(ctx, b.hashKey, key, value).Err(); err != nil {
		return err
	}
	b.publish(ctx, changeMessage{Key: key, Value: value})
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.HDel(ctx, b.hashKey, key).Err(); err != nil {
		return err
	}
	b.publish(ctx, changeMessage{Key: key, Deleted: true})
	return nil
}

func (b *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	return b.client.HKeys(ctx, b.hashKey).Result()
}

// publish 广播变更，失败只告警
func (b *RedisBackend) publish(ctx context.Context, msg changeMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.WithError(err).Warnf("marshal change message failed")
		return
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.WithError(err).Warnf("publish setting change for %q failed", msg.Key)
	}
}

// Subscribe 订阅设置变更频道
func (b *RedisBackend) Subscribe(fn func(key, value string)) (func(), error) {
	pubsub := b.client.Subscribe(context.Background(), b.channel)
	// 确认订阅建立，之后的变更不会漏收
	if _, err := pubsub.Receive(context.Background()); err != nil {
		pubsub.Close()
		return nil, coreerrors.Wrap(err, coreerrors.CodeConnectionError, "subscribe settings channel failed")
	}

	safe.Go("settings.redis.subscribe", func() {
		for msg := range pubsub.Channel() {
			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.WithError(err).Warnf("unmarshal change message failed")
				continue
			}
			if change.Deleted {
				fn(change.Key, "")
			} else {
				fn(change.Key, change.Value)
			}
		}
	})

	return func() {
		if err := pubsub.Close(); err != nil {
			b.logger.WithError(err).Warnf("close settings subscription failed")
		}
	}, nil
}

func (b *RedisBackend) Close() error {
	err := b.client.Close()
	if b.server != nil {
		b.server.Close()
	}
	return err
}

// Ping 连接健康检查
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Client 底层客户端，测试与高级操作用
func (b *RedisBackend) Client() *redis.Client {
	return b.client
}

// Addr 后端地址，embedded 模式下为内嵌服务地址
func (b *RedisBackend) Addr() string {
	return b.client.Options().Addr
}

var _ WatchableBackend = (*RedisBackend)(nil)
