// Package httpapi exposes the engine's public operations as a JSON
// surface over gorilla/mux.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"

	"github.com/spikeycoins/tradeengine/admission"
	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/engine"
	domainorder "github.com/spikeycoins/tradeengine/exchange/order"
	"github.com/spikeycoins/tradeengine/log"
	"github.com/spikeycoins/tradeengine/money"
	domainposition "github.com/spikeycoins/tradeengine/position"
	"github.com/spikeycoins/tradeengine/xerrors"
)

var subLogger = log.NewSubLogger("HTTPAPI")

// Server adapts an *engine.Engine to net/http.
type Server struct {
	engine *engine.Engine
}

// New constructs a Server over e.
func New(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// Router builds the mux.Router wiring every handler to its route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/orders", s.placeOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}", s.cancelOrder).Methods(http.MethodDelete)
	r.HandleFunc("/positions/{id}/close", s.closePosition).Methods(http.MethodPost)
	r.HandleFunc("/markets/{pair}/book", s.getOrderBook).Methods(http.MethodGet)
	r.HandleFunc("/markets/{pair}/trades", s.getTrades).Methods(http.MethodGet)
	r.HandleFunc("/markets/{pair}/funding", s.distributeFunding).Methods(http.MethodPost)
	r.HandleFunc("/markets/{pair}/liquidations", s.checkLiquidations).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/orders", s.getOrders).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/positions", s.getPositions).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/wallets/{currency}", s.getWalletHistory).Methods(http.MethodGet)
	r.HandleFunc("/pricing/status", s.pricingStatus).Methods(http.MethodGet)
	return r
}

type placeOrderRequest struct {
	User               string `json:"user"`
	Pair               string `json:"pair"`
	Side               string `json:"side"`
	Type               string `json:"type"`
	Price              string `json:"price,omitempty"`
	Quantity           string `json:"quantity"`
	CollateralCurrency string `json:"collateral_currency,omitempty"`
	Leverage           int    `json:"leverage,omitempty"`
	IdempotencyKey     string `json:"idempotency_key,omitempty"`
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.New(xerrors.Validation, "malformed request body: %v", err))
		return
	}

	pair, ok := currency.ParsePair(req.Pair)
	if !ok {
		writeError(w, xerrors.New(xerrors.Validation, "unrecognized pair %q", req.Pair))
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, err)
		return
	}
	orderType, err := parseOrderType(req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	quantity, err := parseDecimalField("quantity", req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	admReq := admission.PlaceRequest{
		User:               req.User,
		Pair:               pair,
		Side:               side,
		Type:               orderType,
		Quantity:           quantity,
		CollateralCurrency: currency.NewCode(req.CollateralCurrency),
		Leverage:           req.Leverage,
		IdempotencyKey:     req.IdempotencyKey,
	}
	if req.Price != "" {
		price, err := parseDecimalField("price", req.Price)
		if err != nil {
			writeError(w, err)
			return
		}
		admReq.Price = price
		admReq.HasPrice = true
	}

	result, err := s.engine.PlaceOrder(r.Context(), admReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, xerrors.New(xerrors.Validation, "malformed order id"))
		return
	}
	user := r.URL.Query().Get("user")
	result, err := s.engine.CancelOrder(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type closePositionRequest struct {
	User     string `json:"user"`
	Quantity string `json:"quantity,omitempty"`
}

func (s *Server) closePosition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, xerrors.New(xerrors.Validation, "malformed position id"))
		return
	}
	var req closePositionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, xerrors.New(xerrors.Validation, "malformed request body: %v", err))
			return
		}
	}

	admReq := admission.ClosePositionRequest{User: req.User, PositionID: id}
	if req.Quantity != "" {
		qty, err := parseDecimalField("quantity", req.Quantity)
		if err != nil {
			writeError(w, err)
			return
		}
		admReq.Quantity = qty
		admReq.HasQty = true
	}

	result, err := s.engine.ClosePosition(r.Context(), admReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getOrderBook(w http.ResponseWriter, r *http.Request) {
	pair, err := parsePairVar(r)
	if err != nil {
		writeError(w, err)
		return
	}
	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		depth, _ = strconv.Atoi(v)
	}
	result, err := s.engine.GetOrderBook(r.Context(), pair, depth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	pair, err := parsePairVar(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	result, err := s.engine.GetTrades(r.Context(), pair, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) distributeFunding(w http.ResponseWriter, r *http.Request) {
	pair, err := parsePairVar(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.DistributeFunding(r.Context(), pair); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkLiquidations(w http.ResponseWriter, r *http.Request) {
	pair, err := parsePairVar(r)
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := s.engine.CheckLiquidations(r.Context(), pair)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) getOrders(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var status *domainorder.Status
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, err := parseOrderStatus(v)
		if err != nil {
			writeError(w, err)
			return
		}
		status = &parsed
	}
	result, err := s.engine.GetOrders(r.Context(), user, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getPositions(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var status *domainposition.Status
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, err := parsePositionStatus(v)
		if err != nil {
			writeError(w, err)
			return
		}
		status = &parsed
	}
	result, err := s.engine.GetPositions(r.Context(), user, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getWalletHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	wallet, history, err := s.engine.GetWalletHistory(r.Context(), vars["user"], currency.NewCode(vars["currency"]), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Wallet       interface{} `json:"wallet"`
		Transactions interface{} `json:"transactions"`
	}{Wallet: wallet, Transactions: history})
}

func (s *Server) pricingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.PricingStatus())
}

func parsePairVar(r *http.Request) (currency.Pair, error) {
	s := mux.Vars(r)["pair"]
	pair, ok := currency.ParsePair(s)
	if !ok {
		return currency.Pair{}, xerrors.New(xerrors.Validation, "unrecognized pair %q", s)
	}
	return pair, nil
}

func parseSide(s string) (domainorder.Side, error) {
	switch s {
	case "buy":
		return domainorder.Buy, nil
	case "sell":
		return domainorder.Sell, nil
	default:
		return 0, xerrors.New(xerrors.Validation, "unrecognized side %q", s)
	}
}

func parseOrderType(s string) (domainorder.Type, error) {
	switch s {
	case "limit":
		return domainorder.Limit, nil
	case "market":
		return domainorder.Market, nil
	default:
		return 0, xerrors.New(xerrors.Validation, "unrecognized order type %q", s)
	}
}

func parseOrderStatus(s string) (domainorder.Status, error) {
	switch s {
	case "open":
		return domainorder.Open, nil
	case "partial":
		return domainorder.Partial, nil
	case "filled":
		return domainorder.Filled, nil
	case "cancelled":
		return domainorder.Cancelled, nil
	default:
		return 0, xerrors.New(xerrors.Validation, "unrecognized order status %q", s)
	}
}

func parsePositionStatus(s string) (domainposition.Status, error) {
	switch s {
	case "open":
		return domainposition.OpenStatus, nil
	case "closed":
		return domainposition.Closed, nil
	case "liquidated":
		return domainposition.Liquidated, nil
	default:
		return 0, xerrors.New(xerrors.Validation, "unrecognized position status %q", s)
	}
}

func parseDecimalField(field, s string) (money.Decimal, error) {
	d, err := money.NewFromString(s)
	if err != nil {
		return money.Decimal{}, xerrors.New(xerrors.Validation, "malformed %s %q", field, s)
	}
	return d, nil
}
