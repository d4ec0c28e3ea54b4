package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsRead(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestWebSocketExecuteRoundTrip(t *testing.T) {
	ts := newTestServer(t, &scriptedChain{outputs: map[string]string{"greet": "hello there"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/v1/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	greeting := wsRead(t, ctx, conn)
	assert.Equal(t, "connection.established", greeting["type"])

	msg, err := json.Marshal(map[string]any{
		"action":  "execute",
		"agentId": "svc",
		"task":    "greet the user",
	})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, msg))

	assert.Equal(t, "start", wsRead(t, ctx, conn)["type"])

	chunk := wsRead(t, ctx, conn)
	assert.Equal(t, "chunk", chunk["type"])
	assert.Equal(t, "hello there", chunk["data"])

	complete := wsRead(t, ctx, conn)
	assert.Equal(t, "complete", complete["type"])
	response := complete["response"].(map[string]any)
	assert.Equal(t, "hello there", response["output"])
}
