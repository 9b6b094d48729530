package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SecretPrefix 标记需要从 AWS SSM Parameter Store 读取的配置值。
const SecretPrefix = "ssm:"

// ParameterAPI 是读取参数所需的最小 SSM 接口，*ssm.Client 满足该接口。
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// secretFields 返回允许通过 SSM 间接引用的配置项。
func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"ledger.private_key":           &c.Ledger.PrivateKey,
		"llm.openai.api_key":           &c.LLM.OpenAI.APIKey,
		"llm.gemini.api_key":           &c.LLM.Gemini.APIKey,
		"audit.dsn":                    &c.Audit.DSN,
		"cache.redis.password":         &c.Cache.Redis.Password,
		"tasks.redis.password":         &c.Tasks.Redis.Password,
		"tasks.rabbitmq.url":           &c.Tasks.RabbitMQ.URL,
		"observability.alerts.webhook": &c.Observability.Alerts.WebhookURL,
	}
}

// NeedsSecrets 判断配置中是否存在 ssm: 引用。
func (c *Config) NeedsSecrets() bool {
	for _, field := range c.secretFields() {
		if strings.HasPrefix(*field, SecretPrefix) {
			return true
		}
	}
	return false
}

// NewParameterAPI 使用默认的 AWS 凭证链创建 SSM 客户端。
func NewParameterAPI(ctx context.Context, region string) (*ssm.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	return ssm.NewFromConfig(awsCfg), nil
}

// ResolveSecrets 将 ssm:/path 形式的配置值替换为参数的解密值。
func ResolveSecrets(ctx context.Context, cfg *Config, api ParameterAPI) error {
	if cfg == nil {
		return errors.New("配置为空")
	}
	if api == nil {
		if cfg.NeedsSecrets() {
			return errors.New("配置引用了 SSM 参数但未提供 SSM 客户端")
		}
		return nil
	}

	for field, target := range cfg.secretFields() {
		if !strings.HasPrefix(*target, SecretPrefix) {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(*target, SecretPrefix))
		if name == "" {
			return fmt.Errorf("配置项 %s 的 SSM 参数名为空", field)
		}
		withDecryption := true
		out, err := api.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &name,
			WithDecryption: &withDecryption,
		})
		if err != nil {
			return fmt.Errorf("读取 SSM 参数 %s 失败: %w", name, err)
		}
		if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
			return fmt.Errorf("SSM 参数 %s 没有值", name)
		}
		*target = *out.Parameter.Value
	}
	return nil
}
