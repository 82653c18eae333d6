package model

import "encoding/json"

// PaymentEventRequest records one event against an open payment session.
type PaymentEventRequest struct {
	Type string          `json:"type" binding:"required,max=64"`
	Data json.RawMessage `json:"data"`
}

// OpenSessionResponse is returned after a payment session is opened.
type OpenSessionResponse struct {
	SessionID string `json:"session_id"`
}
