package task

import (
	"context"

	"CircleLayer-Assistant/internal/assistant"
	xerrors "CircleLayer-Assistant/internal/errors"
)

// Executor 执行一个任务并返回助手回复。返回可重试错误时，
// 处理器会在重试次数内重新投递；Result 非空时作为降级回复保存。
type Executor interface {
	Execute(ctx context.Context, task *Task) (Result, error)
}

// Responder 是 *assistant.Assistant 的最小接口。
type Responder interface {
	Handle(ctx context.Context, text string) assistant.Response
}

// AssistantExecutor 将任务交给助手分发。助手的 error 回复就是任务结果，
// 不会触发重试，用户需要重新提交；重试只针对存储与队列等基础设施故障。
type AssistantExecutor struct {
	Assistant Responder
}

// Execute 实现 Executor。
func (e AssistantExecutor) Execute(ctx context.Context, task *Task) (Result, error) {
	if e.Assistant == nil {
		return Result{}, xerrors.New(xerrors.CodeNotInitialized, "助手未初始化")
	}
	ctx = assistant.WithSession(ctx, task.SessionID)
	resp := e.Assistant.Handle(ctx, task.Message)
	result := Result{Text: resp.Text, Kind: string(resp.Kind), Data: resp.Data}

	// 依赖不可用时的回复标记为降级，提示客户端稍后重新提交。
	if resp.Kind == assistant.KindError {
		if code := responseCode(resp.Data); code != "" && xerrors.AttributesOf(code).Retryable {
			result.Degraded = true
		}
	}
	return result, nil
}

func responseCode(data any) xerrors.Code {
	switch v := data.(type) {
	case map[string]string:
		return xerrors.Code(v["code"])
	case map[string]any:
		if s, ok := v["code"].(string); ok {
			return xerrors.Code(s)
		}
	}
	return ""
}
