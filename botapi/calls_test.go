package botapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tgdispatch/internal/testutil"
	"github.com/prilive-com/tgdispatch/tg"
)

func TestSendMessage_PostsPayload(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnSendMessage(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyMessage(w, 1)
	})
	client := newTestClient(t, server)

	err := client.SendMessage(context.Background(), "@mychannel", "hello world")
	require.NoError(t, err)

	capture := server.LastCapture()
	require.NotNil(t, capture)
	capture.AssertPath(t, "/bot"+testutil.TestToken+"/sendMessage")
	capture.AssertBodyField(t, "chat_id", "@mychannel")
	capture.AssertBodyField(t, "text", "hello world")
	capture.AssertBodyField(t, "parse_mode", "HTML")
}

func TestSendMessage_ChatNotFound(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnSendMessage(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyError(w, 400, "Bad Request: chat not found", nil)
	})
	client := newTestClient(t, server)

	err := client.SendMessage(context.Background(), "12345", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, tg.ErrChatNotFound)

	var apiErr *tg.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.False(t, apiErr.IsRetryable())
}

func TestSendMessage_RateLimited(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnSendMessage(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyRateLimit(w, 7)
	})
	client := newTestClient(t, server)

	err := client.SendMessage(context.Background(), "@mychannel", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, tg.ErrTooManyRequests)

	var apiErr *tg.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.True(t, apiErr.IsRetryable())
}

func TestSendMessage_ServerErrorsOpenBreaker(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnSendMessage(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyServerError(w, 500, "Internal Server Error")
	})
	client := newTestClient(t, server)

	for i := 0; i < 3; i++ {
		err := client.SendMessage(context.Background(), "@mychannel", "hello")
		require.Error(t, err)
		require.NotErrorIs(t, err, tg.ErrCircuitOpen)
	}

	err := client.SendMessage(context.Background(), "@mychannel", "hello")
	assert.ErrorIs(t, err, tg.ErrCircuitOpen)
	assert.Equal(t, 3, server.CaptureCount(), "the open breaker must not reach the wire")
}

func TestSendMessage_ClientErrorsDoNotOpenBreaker(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnSendMessage(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyError(w, 403, "Forbidden: bot was blocked by the user", nil)
	})
	client := newTestClient(t, server)

	for i := 0; i < 6; i++ {
		err := client.SendMessage(context.Background(), "@mychannel", "hello")
		require.ErrorIs(t, err, tg.ErrBotBlocked)
		require.NotErrorIs(t, err, tg.ErrCircuitOpen)
	}
	assert.Equal(t, 6, server.CaptureCount())
}

func TestGetUpdates_SendsPollParameters(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnGetUpdates(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyNoUpdates(w)
	})
	client := newTestClient(t, server)

	updates, err := client.GetUpdates(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Empty(t, updates)

	capture := server.LastCapture()
	require.NotNil(t, capture)
	capture.AssertPath(t, "/bot"+testutil.TestToken+"/getUpdates")
	capture.AssertQuery(t, "offset", "42")
	capture.AssertQuery(t, "timeout", "1")
	capture.AssertQuery(t, "limit", "100")
}

func TestGetUpdates_ParsesUpdates(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnGetUpdates(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyUpdates(w, []map[string]any{
			testutil.MessageUpdate(100, 42, "first"),
			testutil.MessageUpdate(101, 42, "second"),
		})
	})
	client := newTestClient(t, server)

	updates, err := client.GetUpdates(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.Equal(t, int64(100), updates[0].UpdateID)
	assert.Equal(t, "first", updates[0].Msg().Text)
	require.NotNil(t, updates[1].Sender())
	assert.Equal(t, int64(42), updates[1].Sender().ID)
}

func TestGetUpdates_Unauthorized(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnGetUpdates(func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyError(w, 401, "Unauthorized", nil)
	})
	client := newTestClient(t, server)

	_, err := client.GetUpdates(context.Background(), 0, 1)
	assert.ErrorIs(t, err, tg.ErrUnauthorized)
}

func TestGetUpdates_ContextCancelled(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.OnGetUpdates(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		testutil.ReplyNoUpdates(w)
	})
	client := newTestClient(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.GetUpdates(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
