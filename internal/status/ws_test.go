package status

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

func TestPushServer_BroadcastsToConnectedClient(t *testing.T) {
	srv, err := newPushServer(18800, 18809)
	require.NoError(t, err)
	defer srv.close()

	url := fmt.Sprintf("ws://127.0.0.1:%d/", srv.port)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.clients) == 1
	}, time.Second, 5*time.Millisecond)

	srv.broadcast(models.PushMessage{Type: models.PushTypeTaskStarted, Data: map[string]string{"spec_id": "001-x"}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got models.PushMessage
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, models.PushTypeTaskStarted, got.Type)
}
