package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/payment"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/validator"
	ws "github.com/fairtest/fairtest-backend/internal/websocket"
)

const testPayer = "0x52908400098527886E0F7030069857D2E4169EE7"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(response.RequestIDMiddleware(zerolog.Nop()))
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

// ─── Stateless engine ───────────────────────────────────────────────

func TestEvaluateAndRank(t *testing.T) {
	evalSvc := service.NewEvaluationService(nil, nil, nil, evaluation.New(evaluation.DefaultConfig()), zerolog.Nop())
	h := NewEvaluatorHandler(nil, evalSvc)
	r := newEngine()
	r.POST("/evaluate", h.Evaluate)
	r.POST("/rank", h.Rank)

	body := `{
		"questions": [
			{"id": "q1", "type": "mcq", "marks": 4, "negative_marks": 1, "correct_answer": 2},
			{"id": "q2", "type": "descriptive", "marks": 5}
		],
		"answers": {"q1": 2, "q2": "photosynthesis needs light"}
	}`
	status, env := do(t, r, http.MethodPost, "/evaluate", body)
	if status != http.StatusOK {
		t.Fatalf("evaluate status = %d, error = %+v", status, env.Error)
	}
	var got struct {
		Result evaluation.Result `json:"result"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.Result.AutoScore != 4 || got.Result.MaxScore != 9 {
		t.Fatalf("auto/max = %v/%v, want 4/9", got.Result.AutoScore, got.Result.MaxScore)
	}
	if len(got.Result.ManualGradingIDs) != 1 || got.Result.ManualGradingIDs[0] != "q2" {
		t.Fatalf("manual ids = %v", got.Result.ManualGradingIDs)
	}

	rankBody := map[string]any{"results": []map[string]any{
		{"pseudonym_hash": "a", "total_score": 5},
		{"pseudonym_hash": "b", "total_score": 9},
		{"pseudonym_hash": "c", "total_score": 5},
	}}
	status, env = do(t, r, http.MethodPost, "/rank", rankBody)
	if status != http.StatusOK {
		t.Fatalf("rank status = %d", status)
	}
	var board struct {
		Leaderboard []struct {
			PseudonymHash string `json:"pseudonym_hash"`
			Rank          int    `json:"rank"`
		} `json:"leaderboard"`
	}
	if err := json.Unmarshal(env.Data, &board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	want := []struct {
		ph   string
		rank int
	}{{"b", 1}, {"a", 2}, {"c", 2}}
	for i, w := range want {
		if board.Leaderboard[i].PseudonymHash != w.ph || board.Leaderboard[i].Rank != w.rank {
			t.Fatalf("leaderboard[%d] = %+v, want %+v", i, board.Leaderboard[i], w)
		}
	}
}

func TestEvaluateRejectsEmptyQuestionList(t *testing.T) {
	evalSvc := service.NewEvaluationService(nil, nil, nil, evaluation.New(evaluation.DefaultConfig()), zerolog.Nop())
	r := newEngine()
	r.POST("/evaluate", NewEvaluatorHandler(nil, evalSvc).Evaluate)

	status, env := do(t, r, http.MethodPost, "/evaluate", `{"questions": [], "answers": {}}`)
	if status != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
}

// ─── Submissions ────────────────────────────────────────────────────

func TestSubmitValidatesPayloadShape(t *testing.T) {
	r := newEngine()
	r.POST("/submissions", NewSubmissionHandler(nil, nil).Submit)

	body := map[string]any{
		"payload": map[string]any{
			"pseudonym_hash": "not-a-hash",
			"exam_id":        "exam-1",
			"answer_hash":    strings.Repeat("a", 64),
			"timestamp":      1,
		},
		"answers": map[string]any{"q1": 1},
	}
	status, env := do(t, r, http.MethodPost, "/submissions", body)
	if status != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	if _, ok := env.Error.Fields["payload.pseudonym_hash"]; !ok {
		t.Fatalf("fields = %v, want payload.pseudonym_hash", env.Error.Fields)
	}
}

func TestGetResultRejectsMalformedPseudonym(t *testing.T) {
	r := newEngine()
	r.GET("/results/:pseudonym_hash", NewSubmissionHandler(nil, nil).GetResult)

	status, env := do(t, r, http.MethodGet, "/results/0xABC", nil)
	if status != http.StatusBadRequest || env.Error.Code != response.ErrInvalidID {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
}

// ─── Payments ───────────────────────────────────────────────────────

func TestPaymentSessionLifecycle(t *testing.T) {
	network := payment.NewNetwork(payment.NewMemoryStore(), 2, time.Millisecond, zerolog.Nop())
	h := NewPaymentHandler(network)
	r := newEngine()
	r.POST("/sessions", h.OpenSession)
	r.GET("/sessions/:id", h.GetSession)
	r.POST("/sessions/:id/events", h.RecordEvent)
	r.POST("/sessions/:id/settle", h.SettleSession)

	status, env := do(t, r, http.MethodPost, "/sessions", map[string]any{
		"kind":         "registration_fee",
		"payer_wallet": testPayer,
		"exam_id":      "exam-1",
		"amount":       "0.25",
	})
	if status != http.StatusCreated {
		t.Fatalf("open status = %d, error = %+v", status, env.Error)
	}
	var opened struct {
		SessionID string `json:"session_id"`
	}
	_ = json.Unmarshal(env.Data, &opened)

	base := "/sessions/" + opened.SessionID
	if status, env = do(t, r, http.MethodPost, base+"/events", map[string]any{"type": "approved", "data": map[string]any{"block": 12}}); status != http.StatusOK {
		t.Fatalf("event status = %d, error = %+v", status, env.Error)
	}

	status, env = do(t, r, http.MethodPost, base+"/settle", nil)
	if status != http.StatusOK {
		t.Fatalf("settle status = %d, error = %+v", status, env.Error)
	}
	var settled payment.Settlement
	_ = json.Unmarshal(env.Data, &settled)
	if !settled.Success || !strings.HasPrefix(settled.TxHash, "0x") {
		t.Fatalf("settlement = %+v", settled)
	}

	status, env = do(t, r, http.MethodPost, base+"/settle", nil)
	if status != http.StatusConflict || env.Error.Code != response.ErrSessionSettled {
		t.Fatalf("second settle status = %d, error = %+v", status, env.Error)
	}

	status, env = do(t, r, http.MethodGet, "/sessions/unknown", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", status)
	}
}

func TestOpenSessionRejectsBadWallet(t *testing.T) {
	network := payment.NewNetwork(payment.NewMemoryStore(), 0, time.Millisecond, zerolog.Nop())
	r := newEngine()
	r.POST("/sessions", NewPaymentHandler(network).OpenSession)

	status, env := do(t, r, http.MethodPost, "/sessions", map[string]any{
		"kind":         "listing_fee",
		"payer_wallet": "0x1234",
		"amount":       "1",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if _, ok := env.Error.Fields["payer_wallet"]; !ok {
		t.Fatalf("fields = %v, want payer_wallet", env.Error.Fields)
	}
}

// ─── WebSocket ──────────────────────────────────────────────────────

func TestWebSocketPingAndMalformedFrames(t *testing.T) {
	h := NewWSHandler(nil, nil, nil, zerolog.Nop(), nil)
	r := newEngine()
	r.GET("/ws/v1/exams/:exam_id/stream", h.ExamWebSocketStream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/exams/exam-1/stream?pseudonym_hash=" + strings.Repeat("b", 64)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong ws.PongResponse
	if err := conn.ReadJSON(&pong); err != nil || pong.Event != ws.EventPong {
		t.Fatalf("pong = %+v, err = %v", pong, err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	var wsErr ws.ErrorResponse
	if err := conn.ReadJSON(&wsErr); err != nil || wsErr.Event != ws.EventError || wsErr.Code != string(response.ErrInvalidPayload) {
		t.Fatalf("error frame = %+v, err = %v", wsErr, err)
	}

	// The connection survives a malformed frame.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)); err != nil {
		t.Fatalf("write second ping: %v", err)
	}
	if err := conn.ReadJSON(&pong); err != nil || pong.Event != ws.EventPong {
		t.Fatalf("second pong = %+v, err = %v", pong, err)
	}
}

func TestWebSocketRequiresPseudonymHash(t *testing.T) {
	h := NewWSHandler(nil, nil, nil, zerolog.Nop(), nil)
	r := newEngine()
	r.GET("/ws/v1/exams/:exam_id/stream", h.ExamWebSocketStream)

	status, env := do(t, r, http.MethodGet, "/ws/v1/exams/exam-1/stream?pseudonym_hash=0xdeadbeef", nil)
	if status != http.StatusBadRequest || env.Error.Code != response.ErrInvalidID {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
}
