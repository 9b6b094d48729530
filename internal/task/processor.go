package task

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	xerrors "CircleLayer-Assistant/internal/errors"
	"CircleLayer-Assistant/internal/observability/alerting"
	"CircleLayer-Assistant/internal/observability/metrics"
	"CircleLayer-Assistant/pkg/logger"
)

// Processor 负责从队列消费任务并交给 Executor 执行。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
	now         func() time.Time
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
		logger:      logger.Named("task"),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动任务处理循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeNotInitialized, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, taskID string) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeNotInitialized, "处理器未初始化")
	}
	task, err := p.store.Claim(ctx, taskID)
	if err != nil {
		if stdErrors.Is(err, ErrTaskNotFound) || stdErrors.Is(err, ErrTaskCompleted) ||
			stdErrors.Is(err, ErrTaskExhausted) || stdErrors.Is(err, ErrTaskConflict) {
			p.logger.Debug("跳过任务", slog.String("task_id", taskID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.Error("领取任务失败", slog.Any("error", err), slog.String("task_id", taskID))
		p.emitAlert(ctx, &Task{ID: taskID}, CodeTaskProcessing, err, "claim")
		return err
	}

	result, execErr := p.executor.Execute(ctx, task)
	if execErr != nil {
		return p.handleExecutionFailure(ctx, task, result, execErr)
	}

	if err := p.store.MarkSucceeded(ctx, task.ID, result); err != nil {
		p.logger.Error("标记任务成功状态失败", slog.Any("error", err), slog.String("task_id", task.ID))
		return p.requeue(ctx, task, CodeTaskProcessing, err)
	}
	metrics.ObserveJob("succeeded")
	logger.Audit().Info("任务执行成功",
		slog.String("task_id", task.ID),
		slog.String("session_id", task.SessionID),
		slog.String("kind", result.Kind),
		slog.Int("attempts", task.Attempts),
	)
	return nil
}

func (p *Processor) handleExecutionFailure(ctx context.Context, task *Task, result Result, execErr error) error {
	code := xerrors.CodeOf(execErr)
	if code == xerrors.CodeUnknown {
		code = CodeTaskProcessing
	}
	retryable := xerrors.RetryableError(execErr)
	terminal := task.Attempts >= task.MaxRetries || !retryable

	if !terminal {
		logger.Audit().Warn("任务执行失败，等待重试",
			slog.String("task_id", task.ID),
			slog.String("error_code", string(code)),
			slog.Int("attempts", task.Attempts),
			slog.Int("max_retries", task.MaxRetries),
		)
		metrics.ObserveJob("retried")
		p.emitAlert(ctx, task, code, execErr, "retry")
		return p.requeue(ctx, task, code, execErr)
	}

	// 重试耗尽但执行器给出了回复时，保存为降级结果。
	if result.Text != "" {
		result.Degraded = true
		if err := p.store.MarkSucceeded(ctx, task.ID, result); err != nil {
			wrapped := xerrors.Wrap(CodeTaskCompensate, err, "保存降级结果失败")
			p.logger.Error("保存降级结果失败", slog.Any("error", err), slog.String("task_id", task.ID))
			p.emitAlert(ctx, task, CodeTaskCompensate, wrapped, "compensate")
			return p.store.MarkFailed(ctx, task.ID, code, execErr.Error(), true)
		}
		logger.Audit().Warn("任务降级完成",
			slog.String("task_id", task.ID),
			slog.String("error_code", string(code)),
			slog.Int("attempts", task.Attempts),
		)
		metrics.ObserveJob("degraded")
		p.emitAlert(ctx, task, code, execErr, "degraded")
		return nil
	}

	if err := p.store.MarkFailed(ctx, task.ID, code, execErr.Error(), true); err != nil {
		p.logger.Error("标记任务失败状态出错", slog.Any("error", err), slog.String("task_id", task.ID))
		return err
	}
	logger.Audit().Warn("任务执行失败",
		slog.String("task_id", task.ID),
		slog.String("error_code", string(code)),
		slog.String("error", execErr.Error()),
		slog.Int("attempts", task.Attempts),
	)
	metrics.ObserveJob("failed")
	stage := "terminal"
	if !retryable {
		stage = "non_retryable"
	}
	p.emitAlert(ctx, task, code, execErr, stage)
	return nil
}

// requeue 将任务放回 pending 并重新投递。
func (p *Processor) requeue(ctx context.Context, task *Task, code xerrors.Code, cause error) error {
	if err := p.store.MarkFailed(ctx, task.ID, code, cause.Error(), false); err != nil {
		p.logger.Error("回写失败状态出错", slog.Any("error", err), slog.String("task_id", task.ID))
		return err
	}
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, task.ID); err != nil {
		return xerrors.Wrap(CodeTaskPublish, err, fmt.Sprintf("任务 %s 重投失败", task.ID))
	}
	p.logger.Debug("任务已重新排队", slog.String("task_id", task.ID), slog.Int("attempts", task.Attempts))
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, task *Task, code xerrors.Code, cause error, stage string) {
	if p.alerter == nil || task == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	metadata := map[string]string{"stage": stage}
	if cause != nil {
		message = cause.Error()
		metadata["cause"] = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		TaskID:     task.ID,
		Attempts:   task.Attempts,
		MaxRetries: task.MaxRetries,
		Metadata:   metadata,
		OccurredAt: p.now(),
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		p.logger.Error("告警通知失败",
			slog.Any("error", err),
			slog.String("task_id", task.ID),
			slog.String("stage", stage),
		)
	}
}
