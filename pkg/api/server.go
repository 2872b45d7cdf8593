package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderkit/pkg/gateway"
	"github.com/uhyunpark/orderkit/pkg/order"
	"github.com/uhyunpark/orderkit/pkg/storage"
	"github.com/uhyunpark/orderkit/pkg/util"
)

// maxBodyBytes caps order and claim payloads
const maxBodyBytes = 1 << 20

// Server is the claim relay: parties post an order, then each signer posts
// its claim, and whoever submits the order fetches the collected claims.
type Server struct {
	gw      *gateway.Gateway
	store   *storage.PebbleStore
	router  *mux.Router
	hub     *Hub // WebSocket hub
	origins []string
	logger  *zap.SugaredLogger

	// Clock stamps received claims
	Clock util.Clock
}

// NewServer creates a new relay over store. origins lists the CORS origins
// allowed to call it.
func NewServer(gw *gateway.Gateway, store *storage.PebbleStore, origins []string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		gw:      gw,
		store:   store,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		origins: origins,
		logger:  logger,
		Clock:   util.RealClock{},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{hash}/claims", s.handleSubmitClaim).Methods("POST")
	api.HandleFunc("/orders/{hash}/claims", s.handleGetClaims).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in the CORS policy
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Hub returns the websocket hub. The caller runs it alongside Handler.
func (s *Server) Hub() *Hub { return s.hub }

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}
	o, err := order.ParseOrder(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order JSON", err.Error())
		return
	}

	n, err := order.Normalize(o, s.gw.Deployment())
	if err != nil {
		respondOrderError(w, err)
		return
	}
	p, err := order.ProtocolFor(n.Kind, s.gw.Deployment())
	if err != nil {
		respondOrderError(w, err)
		return
	}
	digest, err := p.Hash(n)
	if err != nil {
		respondOrderError(w, err)
		return
	}

	if err := s.store.SaveOrder(digest, n); err != nil {
		s.logger.Errorw("order_store_failed", "digest", digest.Hex(), "err", err)
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}
	s.logger.Infow("order_stored", "digest", digest.Hex(), "kind", n.Kind, "actions", len(n.Actions))

	respondJSON(w, SubmitOrderResponse{
		Status:  "stored",
		Digest:  digest.Hex(),
		Dynamic: p.Dynamic(n),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	digest, o, ok := s.lookupOrder(w, r)
	if !ok {
		return
	}
	claims, err := s.store.LoadClaims(digest)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}
	p, err := order.ProtocolFor(o.Kind, s.gw.Deployment())
	if err != nil {
		respondOrderError(w, err)
		return
	}

	respondJSON(w, OrderInfo{
		Digest:  digest.Hex(),
		Dynamic: p.Dynamic(*o),
		Claims:  len(claims),
		Order:   *o,
	})
}

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	digest, o, ok := s.lookupOrder(w, r)
	if !ok {
		return
	}

	var req SubmitClaimRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	check, err := s.gw.VerifyClaim(*o, req.Claim)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	if check.Digest != digest {
		// deployment changed since the order was stored
		respondError(w, http.StatusConflict, "digest mismatch", check.Digest.Hex())
		return
	}
	if len(check.Open) > 0 {
		held, err := s.store.LoadClaims(digest)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "storage error", err.Error())
			return
		}
		slot, ok := openSlot(held, check)
		if !ok {
			respondError(w, http.StatusConflict, "signer slots taken", check.Signer.Hex())
			return
		}
		check.Slot = slot
	}

	rec := storage.ClaimRecord{
		Signer:     check.Signer,
		Claim:      req.Claim,
		Slot:       check.Slot,
		ReceivedAt: s.Clock.Now().UnixMilli(),
	}
	if err := s.store.SaveClaim(digest, rec); err != nil {
		s.logger.Errorw("claim_store_failed", "digest", digest.Hex(), "err", err)
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}
	claims, err := s.store.LoadClaims(digest)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}

	info := claimInfo(rec)
	s.logger.Infow("claim_stored",
		"digest", digest.Hex(),
		"signer", info.Signer,
		"slot", info.Slot,
		"claims", len(claims))

	s.hub.BroadcastToChannel("order:"+digest.Hex(), ClaimUpdate{
		Type:   "claim",
		Digest: digest.Hex(),
		Claim:  info,
		Claims: len(claims),
	})

	respondJSON(w, info)
}

func (s *Server) handleGetClaims(w http.ResponseWriter, r *http.Request) {
	digest, _, ok := s.lookupOrder(w, r)
	if !ok {
		return
	}
	claims, err := s.store.LoadClaims(digest)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}

	response := make([]ClaimInfo, len(claims))
	for i, c := range claims {
		response[i] = claimInfo(c)
	}
	respondJSON(w, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

// lookupOrder resolves the {hash} route variable to a stored order, writing
// the error response itself when it returns false
func (s *Server) lookupOrder(w http.ResponseWriter, r *http.Request) (common.Hash, *order.Order, bool) {
	hashStr := mux.Vars(r)["hash"]
	raw, err := hexHash(hashStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order hash", err.Error())
		return common.Hash{}, nil, false
	}
	o, err := s.store.LoadOrder(raw)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
		return common.Hash{}, nil, false
	}
	if o == nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return common.Hash{}, nil, false
	}
	return raw, o, true
}

// openSlot picks the open slot for check.Signer: the one it already holds,
// else the first nobody holds.
func openSlot(held []storage.ClaimRecord, check gateway.ClaimCheck) (int, bool) {
	holders := make(map[int]common.Address, len(held))
	for _, c := range held {
		holders[c.Slot] = c.Signer
	}
	for _, slot := range check.Open {
		if holders[slot] == check.Signer {
			return slot, true
		}
	}
	for _, slot := range check.Open {
		if _, taken := holders[slot]; !taken {
			return slot, true
		}
	}
	return 0, false
}

func hexHash(s string) (common.Hash, error) {
	var h common.Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

func claimInfo(c storage.ClaimRecord) ClaimInfo {
	return ClaimInfo{
		Signer:     c.Signer.Hex(),
		Slot:       c.Slot,
		Claim:      c.Claim,
		ReceivedAt: c.ReceivedAt,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondOrderError reports validation failures under their issue code
func respondOrderError(w http.ResponseWriter, err error) {
	var issue order.Issue
	switch {
	case errors.As(err, &issue):
		respondError(w, http.StatusBadRequest, string(issue), err.Error())
	case errors.Is(err, gateway.ErrNotParticipant):
		respondError(w, http.StatusForbidden, "not a participant", err.Error())
	default:
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
	}
}
