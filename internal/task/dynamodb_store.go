package task

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	xerrors "CircleLayer-Assistant/internal/errors"
)

const taskTTL = 7 * 24 * time.Hour

// dynamodbAPI 是任务表所需的最小 DynamoDB 接口，*dynamodb.Client 满足该接口。
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDBConfig 描述任务表。
type DynamoDBConfig struct {
	Table  string
	Region string
}

// DynamoDBStore 将任务保存在 DynamoDB 表中，主键为 id，过期时间写入 ttl 属性。
type DynamoDBStore struct {
	api   dynamodbAPI
	table string
	now   func() time.Time
}

// NewDynamoDBStore 使用默认的 AWS 凭证链创建任务存储。
func NewDynamoDBStore(ctx context.Context, cfg DynamoDBConfig) (*DynamoDBStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	return newDynamoDBStore(dynamodb.NewFromConfig(awsCfg), cfg.Table)
}

func newDynamoDBStore(api dynamodbAPI, table string) (*DynamoDBStore, error) {
	if api == nil {
		return nil, stdErrors.New("DynamoDB 客户端不能为空")
	}
	if strings.TrimSpace(table) == "" {
		return nil, stdErrors.New("DynamoDB 表名不能为空")
	}
	return &DynamoDBStore{api: api, table: table, now: time.Now}, nil
}

func (s *DynamoDBStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

// Create 写入新任务，ID 已存在时返回 ErrTaskConflict。
func (s *DynamoDBStore) Create(ctx context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return xerrors.New(CodeTaskValidation, "任务 ID 不能为空")
	}
	now := s.now()
	if task.CreatedAt == 0 {
		task.CreatedAt = now.Unix()
	}
	task.UpdatedAt = now.Unix()

	item, err := taskItem(task, now.Add(taskTTL).Unix())
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if stdErrors.As(err, &conditional) {
			return ErrTaskConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入任务失败")
	}
	return nil
}

// Get 读取任务。
func (s *DynamoDBStore) Get(ctx context.Context, id string) (*Task, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取任务失败")
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrTaskNotFound
	}
	return itemToTask(out.Item)
}

// Claim 通过条件更新保证同一任务只被一个消费者领取。
func (s *DynamoDBStore) Claim(ctx context.Context, id string) (*Task, error) {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(id),
		UpdateExpression:    aws.String("SET #status = :running, attempts = attempts + :one, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id) AND #status = :pending AND attempts < max_retries"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":running": &types.AttributeValueMemberS{Value: string(StatusRunning)},
			":pending": &types.AttributeValueMemberS{Value: string(StatusPending)},
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":now":     numberAttr(s.now().Unix()),
		},
	})
	if err == nil {
		return s.Get(ctx, id)
	}

	var conditional *types.ConditionalCheckFailedException
	if !stdErrors.As(err, &conditional) {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "领取任务失败")
	}
	// 条件不满足时根据当前状态给出具体原因。
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	switch {
	case current.Status == StatusSucceeded:
		return current, ErrTaskCompleted
	case current.Status == StatusRunning:
		return current, ErrTaskConflict
	default:
		return current, ErrTaskExhausted
	}
}

// MarkSucceeded 写入助手回复。
func (s *DynamoDBStore) MarkSucceeded(ctx context.Context, id string, result Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化任务结果失败: %w", err)
	}
	return s.update(ctx, id, "SET #status = :status, #result = :result, updated_at = :now REMOVE last_error, error_code",
		map[string]string{"#status": "status", "#result": "result"},
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(StatusSucceeded)},
			":result": &types.AttributeValueMemberS{Value: string(payload)},
			":now":    numberAttr(s.now().Unix()),
		})
}

// MarkFailed 记录失败原因，非终态失败放回 pending。
func (s *DynamoDBStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error {
	status := StatusPending
	if terminal {
		status = StatusFailed
	}
	return s.update(ctx, id, "SET #status = :status, last_error = :err, error_code = :code, updated_at = :now",
		map[string]string{"#status": "status"},
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":err":    &types.AttributeValueMemberS{Value: lastError},
			":code":   &types.AttributeValueMemberS{Value: string(code)},
			":now":    numberAttr(s.now().Unix()),
		})
}

func (s *DynamoDBStore) update(ctx context.Context, id, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if stdErrors.As(err, &conditional) {
			return ErrTaskNotFound
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务失败")
	}
	return nil
}

// List 扫描任务表并在本地过滤排序。任务表按 TTL 自动清理，规模有限。
func (s *DynamoDBStore) List(ctx context.Context, opts ListOptions) ([]*Task, error) {
	opts.applyDefaults()
	tasks, err := s.scan(ctx, opts)
	if err != nil {
		return nil, err
	}
	return opts.page(tasks), nil
}

// Stats 统计符合过滤条件的任务。
func (s *DynamoDBStore) Stats(ctx context.Context, opts ListOptions) (TaskStats, error) {
	opts.applyDefaults()
	tasks, err := s.scan(ctx, opts)
	if err != nil {
		return TaskStats{}, err
	}
	return collectStats(tasks), nil
}

func (s *DynamoDBStore) scan(ctx context.Context, opts ListOptions) ([]*Task, error) {
	var (
		tasks []*Task
		start map[string]types.AttributeValue
	)
	for {
		out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "扫描任务表失败")
		}
		for _, item := range out.Items {
			task, err := itemToTask(item)
			if err != nil {
				return nil, err
			}
			if opts.matches(task) {
				tasks = append(tasks, task)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return tasks, nil
		}
		start = out.LastEvaluatedKey
	}
}

// Close 对 DynamoDB 客户端无需操作。
func (s *DynamoDBStore) Close() error { return nil }

func numberAttr(v int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func taskItem(task *Task, ttl int64) (map[string]types.AttributeValue, error) {
	item := map[string]types.AttributeValue{
		"id":          &types.AttributeValueMemberS{Value: task.ID},
		"session_id":  &types.AttributeValueMemberS{Value: task.SessionID},
		"message":     &types.AttributeValueMemberS{Value: task.Message},
		"status":      &types.AttributeValueMemberS{Value: string(task.Status)},
		"attempts":    numberAttr(int64(task.Attempts)),
		"max_retries": numberAttr(int64(task.MaxRetries)),
		"created_at":  numberAttr(task.CreatedAt),
		"updated_at":  numberAttr(task.UpdatedAt),
		"ttl":         numberAttr(ttl),
	}
	if task.LastError != "" {
		item["last_error"] = &types.AttributeValueMemberS{Value: task.LastError}
	}
	if task.ErrorCode != "" {
		item["error_code"] = &types.AttributeValueMemberS{Value: task.ErrorCode}
	}
	if task.Result != nil {
		payload, err := json.Marshal(task.Result)
		if err != nil {
			return nil, fmt.Errorf("序列化任务结果失败: %w", err)
		}
		item["result"] = &types.AttributeValueMemberS{Value: string(payload)}
	}
	return item, nil
}

func itemToTask(item map[string]types.AttributeValue) (*Task, error) {
	task := &Task{
		ID:        strAttr(item, "id"),
		SessionID: strAttr(item, "session_id"),
		Message:   strAttr(item, "message"),
		Status:    Status(strAttr(item, "status")),
		LastError: strAttr(item, "last_error"),
		ErrorCode: strAttr(item, "error_code"),
	}
	if task.ID == "" {
		return nil, xerrors.New(xerrors.CodeStorageFailure, "任务记录缺少 id")
	}
	var err error
	if task.CreatedAt, err = intAttr(item, "created_at"); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = intAttr(item, "updated_at"); err != nil {
		return nil, err
	}
	attempts, err := intAttr(item, "attempts")
	if err != nil {
		return nil, err
	}
	maxRetries, err := intAttr(item, "max_retries")
	if err != nil {
		return nil, err
	}
	task.Attempts, task.MaxRetries = int(attempts), int(maxRetries)

	if raw := strAttr(item, "result"); raw != "" {
		var result Result
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("解析任务结果失败: %w", err)
		}
		task.Result = &result
	}
	return task, nil
}

func strAttr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("任务属性 %s 不是数字", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析任务属性 %s 失败: %w", key, err)
	}
	return parsed, nil
}

var _ Store = (*DynamoDBStore)(nil)
