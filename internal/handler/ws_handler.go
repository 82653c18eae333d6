package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/validator"
	ws "github.com/fairtest/fairtest-backend/internal/websocket"
)

const (
	maxQIDLength    = 128
	maxDraftLength  = 16 << 10
	wsActionTimeout = 15 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

type draftQueue interface {
	Enqueue(ctx context.Context, d *model.Draft) error
}

// WSHandler streams autosave and submit actions for one pseudonym.
type WSHandler struct {
	rdb               redis.Cmdable
	drafts            draftQueue
	submissionService *service.SubmissionService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb redis.Cmdable, drafts draftQueue, submissionService *service.SubmissionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:               rdb,
		drafts:            drafts,
		submissionService: submissionService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// streamSession is the state of one connection.
type streamSession struct {
	conn          *websocket.Conn
	examID        string
	pseudonymHash string
	draftKey      string
	log           zerolog.Logger
}

// ExamWebSocketStream godoc
// WS /ws/v1/exams/:exam_id/stream?pseudonym_hash=
// Upgrades to WebSocket for autosave and instant grading. The connection is
// bound to a pseudonym hash, never to a wallet or account.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	examID := c.Param("exam_id")
	ph := c.Query("pseudonym_hash")
	if examID == "" || !validator.IsSHA256Hex(ph) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s := &streamSession{
		conn:          conn,
		examID:        examID,
		pseudonymHash: ph,
		draftKey:      config.CacheKey.DraftKey(examID, ph),
		log: h.log.With().
			Str("exam_id", examID).
			Str("pseudonym_hash", ph).
			Logger(),
	}
	s.log.Info().Msg("Test-taker connected")

	for {
		action, raw, err := ws.ReadMessage(conn)
		if errors.Is(err, ws.ErrMalformedFrame) {
			ws.WriteError(conn, string(response.ErrInvalidPayload), "frame is not a JSON action")
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch action {
		case ws.ActionAutosave:
			h.handleAutosave(s, raw)
		case ws.ActionSubmit:
			h.handleSubmit(s, raw)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			s.log.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(action))
		}
	}
}

// handleAutosave keeps a draft answer in Redis and queues it for persistence.
func (h *WSHandler) handleAutosave(s *streamSession, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
	defer cancel()

	var req ws.AutosaveRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.QID == "" {
		ws.WriteError(s.conn, string(response.ErrValidation), "q_id and ans are required")
		return
	}
	if len(req.QID) > maxQIDLength || len(req.Answer) > maxDraftLength {
		ws.WriteError(s.conn, string(response.ErrValidation), "q_id or ans too long")
		return
	}

	if err := h.rdb.HSet(ctx, s.draftKey, req.QID, req.Answer).Err(); err != nil {
		s.log.Error().Err(err).Msg("Autosave Redis error")
		ws.WriteError(s.conn, string(response.ErrInternal), "save failed")
		return
	}

	draft := &model.Draft{ExamID: s.examID, PseudonymHash: s.pseudonymHash, QID: req.QID, Answer: req.Answer}
	if err := h.drafts.Enqueue(ctx, draft); err != nil {
		// Redis already holds the draft.
		s.log.Warn().Err(err).Str("q_id", req.QID).Msg("Draft enqueue failed")
	}

	ws.WriteTyped(s.conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved", QID: req.QID})
}

// handleSubmit records the final payload and returns the graded result.
func (h *WSHandler) handleSubmit(s *streamSession, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
	defer cancel()

	var req ws.SubmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		ws.WriteError(s.conn, string(response.ErrInvalidPayload), "payload and answers are required")
		return
	}
	if err := req.Payload.Validate(); err != nil {
		ws.WriteError(s.conn, string(response.ErrInvalidPayload), err.Error())
		return
	}
	if req.Payload.ExamID != s.examID || req.Payload.PseudonymHash != s.pseudonymHash {
		ws.WriteError(s.conn, string(response.ErrInvalidPayload), "payload does not belong to this stream")
		return
	}

	res, err := h.submissionService.Submit(ctx, req.Payload, req.Answers)
	if err != nil {
		_, code := classify(err)
		if code == response.ErrInternal {
			s.log.Error().Err(err).Msg("Submit failed")
		}
		ws.WriteError(s.conn, string(code), response.GetMessage(code))
		return
	}

	if err := h.rdb.Del(ctx, s.draftKey).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Draft cleanup failed")
	}

	s.log.Info().
		Str("ledger_object_id", res.LedgerObjectID).
		Float64("auto_score", res.Result.AutoScore).
		Msg("Exam submitted and graded")

	ws.WriteTyped(s.conn, ws.GradedResponse{
		Event:          ws.EventGraded,
		Status:         "completed",
		LedgerObjectID: res.LedgerObjectID,
		Result:         res.Result,
	})
}
