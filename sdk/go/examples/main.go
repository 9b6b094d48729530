package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"time"

	"CircleLayer-Assistant/internal/api"
	"CircleLayer-Assistant/internal/assistant"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/ledger/ledgertest"
	"CircleLayer-Assistant/internal/task"
	"CircleLayer-Assistant/sdk/go/clayer"
)

// main 在进程内启动一个使用模拟链的服务，并通过 SDK 完成一次对话与一个异步任务。
func main() {
	wallet := "0x3333333333333333333333333333333333333333"
	fake := ledgertest.New(wallet)
	fake.BalanceValue = ledger.Balance{Balance: "42.0", Address: wallet, Currency: ledger.Currency}

	helper := assistant.New(nil, fake, nil, nil)
	store := task.NewMemoryStore()
	queue := task.NewMemoryQueue(8)
	server := api.NewServer(":0", api.Dependencies{
		Assistant: helper,
		Tasks:     task.NewService(store, queue, 3),
		Ledger:    fake,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	processor := task.NewProcessor(task.AssistantExecutor{Assistant: helper}, store, queue, queue)
	go func() { _ = processor.Start(ctx) }()

	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	client, err := clayer.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	session, err := client.CreateSession(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("session %s opened with %d message(s)\n", session.SessionID, len(session.Messages))

	reply, err := client.Chat(ctx, session.SessionID, "what's my balance?")
	if err != nil {
		panic(err)
	}
	fmt.Printf("[%s] %s\n", reply.Message.Kind, reply.Message.Text)

	job, err := client.SubmitJob(ctx, clayer.JobRequest{SessionID: session.SessionID, Message: "show staking pools"})
	if err != nil {
		panic(err)
	}
	job, err = client.WaitJob(ctx, job.ID, 50*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("job %s %s: %s\n", job.ID, job.Status, job.Result.Kind)
}
