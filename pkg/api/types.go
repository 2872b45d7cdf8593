package api

import "github.com/uhyunpark/orderkit/pkg/order"

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// OrderInfo is a stored order with its digest
type OrderInfo struct {
	Digest  string      `json:"digest"`
	Dynamic bool        `json:"dynamic"` // perform goes to an any-taker entry point
	Claims  int         `json:"claims"`  // claims collected so far
	Order   order.Order `json:"order"`   // normalized form
}

// ClaimInfo is one participant's claim on an order
type ClaimInfo struct {
	Signer     string `json:"signer"`
	Slot       int    `json:"slot"`  // position in the perform signature array
	Claim      string `json:"claim"` // "<method>:0x<signature>"
	ReceivedAt int64  `json:"receivedAt"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	Status  string `json:"status"` // "stored"
	Digest  string `json:"digest"`
	Dynamic bool   `json:"dynamic"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitClaimRequest is the payload for POST /api/v1/orders/{hash}/claims
type SubmitClaimRequest struct {
	Claim string `json:"claim"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["order:0x..."]
}

// ClaimUpdate is broadcast on "order:<digest>" when a claim is accepted
type ClaimUpdate struct {
	Type   string    `json:"type"` // "claim"
	Digest string    `json:"digest"`
	Claim  ClaimInfo `json:"claim"`
	Claims int       `json:"claims"`
}
