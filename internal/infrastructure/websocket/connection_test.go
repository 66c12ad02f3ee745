package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

// The per-connection message loop and the broadcast fan-out both write the
// same connection from their own goroutines; Send has to serialize them or
// gorilla panics on the concurrent write.
func TestSendSerializesConcurrentWriters(t *testing.T) {
	const writers = 8
	const perWriter = 50

	var testUpgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error("upgrade failed:", err)
			return
		}
		wsc := NewWebSocketConnection(conn, "part-1", "lot-1", nopLogger{})

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(writer int) {
				defer wg.Done()
				for n := 0; n < perWriter; n++ {
					if err := wsc.Send(map[string]interface{}{
						"type":   "bid_update",
						"writer": writer,
						"n":      n,
					}); err != nil {
						t.Error("send failed:", err)
						return
					}
				}
			}(i)
		}
		wg.Wait()
		wsc.Close()
		close(done)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	received := 0
	for {
		var msg map[string]interface{}
		if err := client.ReadJSON(&msg); err != nil {
			break
		}
		require.Equal(t, "bid_update", msg["type"])
		received++
	}

	require.Equal(t, writers*perWriter, received)
	<-done
}
