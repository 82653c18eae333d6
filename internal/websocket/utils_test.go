package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestReadMessageReportsActionAndMalformedFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	type frame struct {
		action Action
		err    error
	}
	frames := make(chan frame, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			action, _, err := ReadMessage(conn)
			frames <- frame{action, err}
		}
		_ = WriteTyped(conn, PongResponse{Event: EventPong})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))

	first := <-frames
	if first.err != nil || first.action != ActionPing {
		t.Fatalf("first frame = %+v", first)
	}
	second := <-frames
	if !errors.Is(second.err, ErrMalformedFrame) {
		t.Fatalf("second frame err = %v, want ErrMalformedFrame", second.err)
	}

	var pong PongResponse
	if err := conn.ReadJSON(&pong); err != nil || pong.Event != EventPong {
		t.Fatalf("pong = %+v, err = %v", pong, err)
	}
}
