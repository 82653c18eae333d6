// Package payment runs the off-chain session network used for exam listing
// and registration fees: open a session, record events against it, settle.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/canonical"
	"github.com/fairtest/fairtest-backend/internal/metrics"
)

// Kind is the fee a session collects.
type Kind string

const (
	KindListingFee      Kind = "listing_fee"
	KindRegistrationFee Kind = "registration_fee"
)

// State is a session's lifecycle position.
type State string

const (
	StateOpen    State = "open"
	StateSettled State = "settled"
)

var (
	ErrSessionNotFound = errors.New("payment session not found")
	ErrSessionSettled  = errors.New("payment session already settled")
	ErrInvalidAddress  = errors.New("invalid wallet address")
	ErrInvalidAmount   = errors.New("amount must be a positive decimal")
	ErrInvalidParams   = errors.New("invalid session parameters")
)

// OpenParams describes a new session.
type OpenParams struct {
	Kind        Kind              `json:"kind" binding:"required,oneof=listing_fee registration_fee"`
	PayerWallet string            `json:"payer_wallet" binding:"required,evmaddress"`
	PayeeWallet string            `json:"payee_wallet,omitempty" binding:"omitempty,evmaddress"`
	ExamID      string            `json:"exam_id,omitempty"`
	Amount      string            `json:"amount" binding:"required"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Event is one entry recorded against an open session.
type Event struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Session is the persisted session record.
type Session struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	State       State             `json:"state"`
	PayerWallet string            `json:"payer_wallet"`
	PayeeWallet string            `json:"payee_wallet,omitempty"`
	ExamID      string            `json:"exam_id,omitempty"`
	Amount      string            `json:"amount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Events      []Event           `json:"events"`
	CreatedAt   time.Time         `json:"created_at"`
	SettledAt   *time.Time        `json:"settled_at,omitempty"`
	TxHash      string            `json:"tx_hash,omitempty"`
}

// Settlement is the result of settling a session.
type Settlement struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash"`
}

// Store persists sessions. Update applies fn atomically and fails with a
// retryable error on concurrent modification.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
}

// Network is the payment-session service.
type Network struct {
	store     Store
	retries   int
	baseDelay time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewNetwork returns a Network that retries transient store errors up to
// retries times with exponential backoff starting at baseDelay.
func NewNetwork(store Store, retries int, baseDelay time.Duration, log zerolog.Logger) *Network {
	return &Network{
		store:     store,
		retries:   retries,
		baseDelay: baseDelay,
		now:       time.Now,
		log:       log.With().Str("component", "payment").Logger(),
	}
}

func normalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// validate checks p and returns it with addresses in checksum form.
func (p OpenParams) validate() (OpenParams, error) {
	var err error
	switch p.Kind {
	case KindListingFee:
	case KindRegistrationFee:
		if p.ExamID == "" || p.PayeeWallet == "" {
			return p, fmt.Errorf("%w: registration requires exam_id and payee_wallet", ErrInvalidParams)
		}
	default:
		return p, fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, p.Kind)
	}

	if p.PayerWallet, err = normalizeAddress(p.PayerWallet); err != nil {
		return p, err
	}
	if p.PayeeWallet != "" {
		if p.PayeeWallet, err = normalizeAddress(p.PayeeWallet); err != nil {
			return p, err
		}
	}

	amount, ok := new(big.Rat).SetString(strings.TrimSpace(p.Amount))
	if !ok || amount.Sign() <= 0 {
		return p, fmt.Errorf("%w: %q", ErrInvalidAmount, p.Amount)
	}
	return p, nil
}

// OpenSession creates an open session and returns its id.
func (n *Network) OpenSession(ctx context.Context, params OpenParams) (string, error) {
	p, err := params.validate()
	if err != nil {
		return "", err
	}

	s := &Session{
		ID:          uuid.NewString(),
		Kind:        p.Kind,
		State:       StateOpen,
		PayerWallet: p.PayerWallet,
		PayeeWallet: p.PayeeWallet,
		ExamID:      p.ExamID,
		Amount:      strings.TrimSpace(p.Amount),
		Metadata:    p.Metadata,
		Events:      []Event{},
		CreatedAt:   n.now().UTC(),
	}
	if err := n.retry(ctx, "open", func() error { return n.store.Create(ctx, s) }); err != nil {
		return "", err
	}

	metrics.PaymentSessions.WithLabelValues(string(s.Kind), string(StateOpen)).Inc()
	n.log.Info().Str("session_id", s.ID).Str("kind", string(s.Kind)).Msg("Payment session opened")
	return s.ID, nil
}

// RecordEvent appends an event to an open session.
func (n *Network) RecordEvent(ctx context.Context, sessionID, eventType string, data json.RawMessage) error {
	if strings.TrimSpace(eventType) == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidParams)
	}
	if len(data) > 0 && !json.Valid(data) {
		return fmt.Errorf("%w: event data is not valid JSON", ErrInvalidParams)
	}

	return n.retry(ctx, "record_event", func() error {
		_, err := n.store.Update(ctx, sessionID, func(s *Session) error {
			if s.State != StateOpen {
				return ErrSessionSettled
			}
			s.Events = append(s.Events, Event{Type: eventType, Data: data, RecordedAt: n.now().UTC()})
			return nil
		})
		return err
	})
}

// SettleSession closes an open session and returns its settlement hash.
func (n *Network) SettleSession(ctx context.Context, sessionID string) (*Settlement, error) {
	var settled *Session
	err := n.retry(ctx, "settle", func() error {
		s, err := n.store.Update(ctx, sessionID, func(s *Session) error {
			if s.State != StateOpen {
				return ErrSessionSettled
			}
			hash, err := SettlementHash(s)
			if err != nil {
				return err
			}
			at := n.now().UTC()
			s.State = StateSettled
			s.SettledAt = &at
			s.TxHash = hash
			return nil
		})
		settled = s
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentSessions.WithLabelValues(string(settled.Kind), string(StateSettled)).Inc()
	n.log.Info().Str("session_id", settled.ID).Str("tx_hash", settled.TxHash).Msg("Payment session settled")
	return &Settlement{Success: true, TxHash: settled.TxHash}, nil
}

// GetSession returns a session by id.
func (n *Network) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return n.store.Load(ctx, sessionID)
}

// SettlementHash is the keccak256 of the canonical session record as it
// stood before settlement.
func SettlementHash(s *Session) (string, error) {
	pre := *s
	pre.State, pre.SettledAt, pre.TxHash = StateOpen, nil, ""
	encoded, err := canonical.Marshal(pre)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return crypto.Keccak256Hash(encoded).Hex(), nil
}

func retryable(err error) bool {
	for _, final := range []error{
		ErrSessionNotFound, ErrSessionSettled, ErrInvalidAddress, ErrInvalidAmount, ErrInvalidParams,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, final) {
			return false
		}
	}
	return true
}

// retry runs fn until it succeeds, fails permanently or exhausts retries.
func (n *Network) retry(ctx context.Context, op string, fn func() error) error {
	delay := n.baseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !retryable(err) || attempt >= n.retries {
			return err
		}
		n.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("backoff", delay).Msg("Payment store error, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
