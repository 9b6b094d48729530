package task

import (
	"context"
	"fmt"
	"strings"

	"CircleLayer-Assistant/internal/config"
)

// OpenStore 根据配置创建任务存储。
func OpenStore(ctx context.Context, cfg config.TaskConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "dynamodb":
		return NewDynamoDBStore(ctx, DynamoDBConfig{Table: cfg.DynamoDB.Table, Region: cfg.DynamoDB.Region})
	default:
		return nil, fmt.Errorf("不支持的任务存储: %s", cfg.Store)
	}
}

// OpenQueue 根据配置创建任务队列。
func OpenQueue(ctx context.Context, cfg config.TaskConfig) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Queue)) {
	case "", "memory":
		return NewMemoryQueue(cfg.QueueBuffer), nil
	case "redis":
		return NewRedisQueue(ctx, RedisQueueConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
	case "rabbitmq":
		return NewRabbitMQQueue(RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			Prefetch:   cfg.RabbitMQ.Prefetch,
		})
	default:
		return nil, fmt.Errorf("不支持的任务队列: %s", cfg.Queue)
	}
}
