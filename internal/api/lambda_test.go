package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"
)

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func TestLambdaHandlerChat(t *testing.T) {
	f := newFixture(t)
	handle := NewLambdaHandler(f.server.Handler())

	resp, err := handle(context.Background(), makeEvent(http.MethodPost, "/api/v1/chat", `{"message":"what's my balance?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])

	var out chatResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	require.NotEmpty(t, out.SessionID)
	require.Equal(t, out.SessionID, resp.Headers["X-Session-Id"])
	require.Contains(t, out.Message.Text, "12.5")
}

func TestLambdaHandlerQueryAndBase64(t *testing.T) {
	f := newFixture(t)
	handle := NewLambdaHandler(f.server.Handler())

	event := makeEvent(http.MethodPost, "/api/v1/jobs", base64.StdEncoding.EncodeToString([]byte(`{"message":"show farms"}`)))
	event.IsBase64Encoded = true
	resp, err := handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	event = makeEvent(http.MethodGet, "/api/v1/jobs", "")
	event.QueryStringParameters = map[string]string{"status": "pending"}
	resp, err = handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, "show farms")

	event = makeEvent(http.MethodPost, "/api/v1/chat", "%%%")
	event.IsBase64Encoded = true
	resp, err = handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLambdaHandlerUnknownRoute(t *testing.T) {
	f := newFixture(t)
	handle := NewLambdaHandler(f.server.Handler())

	resp, err := handle(context.Background(), makeEvent(http.MethodGet, "/nope", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
