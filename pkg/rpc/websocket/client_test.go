package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	gorillaws "github.com/gorilla/websocket"
	"github.com/jensneuse/abstractlogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_WriteToServer(t *testing.T) {
	connToClient, connToServer := net.Pipe()

	websocketClient := NewClient(abstractlogger.NoopLogger, connToServer)

	t.Run("should write successfully to server", func(t *testing.T) {
		messageToServer := []byte(`{"id":"1","msg":"method","method":"system.info","params":[]}`)

		go func() {
			err := websocketClient.WriteBytesToServer(messageToServer)
			assert.NoError(t, err)
		}()

		data, opCode, err := wsutil.ReadClientData(connToClient)
		require.NoError(t, err)
		require.Equal(t, ws.OpText, opCode)
		assert.Equal(t, messageToServer, data)
	})

	t.Run("should not write to server when connection is closed", func(t *testing.T) {
		err := connToClient.Close()
		require.NoError(t, err)

		websocketClient.isClosedConnection.Store(true)

		err = websocketClient.WriteBytesToServer([]byte(""))
		assert.Equal(t, ErrClientDisconnected, err)
	})
}

func TestClient_ReadFromServer(t *testing.T) {
	t.Run("should successfully read from server", func(t *testing.T) {
		connToClient, connToServer := net.Pipe()
		websocketClient := NewClient(abstractlogger.NoopLogger, connToServer)

		messageToClient := []byte(`{"msg":"connected","session":"b4b5c1a3"}`)

		go func() {
			err := wsutil.WriteServerText(connToClient, messageToClient)
			assert.NoError(t, err)
		}()

		messageFromServer, err := websocketClient.ReadBytesFromServer()
		assert.NoError(t, err)
		assert.Equal(t, messageToClient, messageFromServer)
	})

	t.Run("should return no data and mark connection closed when server closes", func(t *testing.T) {
		connToClient, connToServer := net.Pipe()
		websocketClient := NewClient(abstractlogger.NoopLogger, connToServer)

		require.NoError(t, connToClient.Close())

		messageFromServer, err := websocketClient.ReadBytesFromServer()
		assert.NoError(t, err)
		assert.Nil(t, messageFromServer)
		assert.False(t, websocketClient.IsConnected())
	})
}

func TestClient_IsConnected(t *testing.T) {
	_, connToServer := net.Pipe()
	websocketClient := NewClient(abstractlogger.NoopLogger, connToServer)

	t.Run("should return true when a connection is established", func(t *testing.T) {
		isConnected := websocketClient.IsConnected()
		assert.True(t, isConnected)
	})

	t.Run("should return false when a connection is closed", func(t *testing.T) {
		err := websocketClient.Disconnect()
		require.NoError(t, err)

		isConnected := websocketClient.IsConnected()
		assert.False(t, isConnected)
	})
}

func TestClient_Disconnect(t *testing.T) {
	_, connToServer := net.Pipe()
	websocketClient := NewClient(abstractlogger.NoopLogger, connToServer)

	t.Run("should disconnect and indicate a closed connection", func(t *testing.T) {
		err := websocketClient.Disconnect()
		assert.NoError(t, err)
		assert.True(t, websocketClient.isClosedConnection.Load())
	})

	t.Run("should be a no-op when called twice", func(t *testing.T) {
		err := websocketClient.Disconnect()
		assert.NoError(t, err)
	})
}

func TestClient_isClosedConnectionError(t *testing.T) {
	_, connToServer := net.Pipe()
	websocketClient := NewClient(abstractlogger.NoopLogger, connToServer)

	t.Run("should not close connection when it is not a closed connection error", func(t *testing.T) {
		isClosedConnectionError := websocketClient.isClosedConnectionError(errors.New("no closed connection err"))
		assert.False(t, isClosedConnectionError)
	})

	t.Run("should close connection when it is a closed connection error", func(t *testing.T) {
		isClosedConnectionError := websocketClient.isClosedConnectionError(wsutil.ClosedError{Code: ws.StatusNormalClosure})
		assert.True(t, isClosedConnectionError)
	})
}

func TestDial(t *testing.T) {
	upgrader := gorillaws.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Client") != "truenas-go" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(messageType, data)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/websocket"

	t.Run("should upgrade and exchange text frames", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		client, err := Dial(ctx, url, DialOptions{
			Header: http.Header{"X-Client": []string{"truenas-go"}},
		})
		require.NoError(t, err)
		defer client.Disconnect()

		require.NoError(t, client.WriteBytesToServer([]byte(`{"msg":"ping","id":"1"}`)))

		data, err := client.ReadBytesFromServer()
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"msg":"ping","id":"1"}`), data)
	})

	t.Run("should fail when the server refuses the upgrade", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		client, err := Dial(ctx, url, DialOptions{})
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}
