package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rustyeddy/quantsim/broker"
	"github.com/rustyeddy/quantsim/journal"
	"github.com/rustyeddy/quantsim/market"
	"github.com/rustyeddy/quantsim/matching"
	"github.com/rustyeddy/quantsim/order"
	"github.com/rustyeddy/quantsim/pkg/logging"
	"github.com/rustyeddy/quantsim/risk"
	"github.com/rustyeddy/quantsim/sim"
	"github.com/sirupsen/logrus"
)

// RunStore serves finished backtests; *journal.SQLite is one.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (journal.BacktestRun, error)
	ListRuns(ctx context.Context) ([]journal.BacktestRun, error)
}

type Options struct {
	// Session is the template for new sessions. AccountID is ignored.
	Session sim.Config
	Runs    RunStore
	Hub     *Hub
	Log     *logrus.Entry
}

// Server exposes the broker contract of every arena session over HTTP.
type Server struct {
	arena   *sim.Arena
	session sim.Config
	runs    RunStore
	hub     *Hub
	log     *logrus.Entry
	router  *mux.Router
	started time.Time
}

func NewServer(arena *sim.Arena, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logging.Component("api")
	}
	s := &Server{
		arena:   arena,
		session: opts.Session,
		runs:    opts.Runs,
		hub:     opts.Hub,
		log:     opts.Log,
		router:  mux.NewRouter(),
		started: time.Now(),
	}
	s.SetupRoutes(s.router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/api/health", s.healthCheck).Methods("GET")

	r.HandleFunc("/api/sessions", s.listSessions).Methods("GET")
	r.HandleFunc("/api/sessions", s.openSession).Methods("POST")
	r.HandleFunc("/api/sessions/{session}", s.closeSession).Methods("DELETE")
	r.HandleFunc("/api/sessions/{session}/account", s.account).Methods("GET")
	r.HandleFunc("/api/sessions/{session}/orders", s.submitOrder).Methods("POST")
	r.HandleFunc("/api/sessions/{session}/orders", s.openOrders).Methods("GET")
	r.HandleFunc("/api/sessions/{session}/orders/{order}", s.orderStatus).Methods("GET")
	r.HandleFunc("/api/sessions/{session}/orders/{order}", s.cancelOrder).Methods("DELETE")
	r.HandleFunc("/api/sessions/{session}/prices", s.updatePrice).Methods("POST")
	r.HandleFunc("/api/sessions/{session}/trades", s.trades).Methods("GET")
	r.HandleFunc("/api/sessions/{session}/equity", s.equity).Methods("GET")
	r.HandleFunc("/api/sessions/{session}/metrics", s.metrics).Methods("GET")

	r.HandleFunc("/api/backtests", s.listRuns).Methods("GET")
	r.HandleFunc("/api/backtests/{id}/result", s.runResult).Methods("GET")

	if s.hub != nil {
		r.Handle("/ws/trades", s.hub)
	}
}

type openSessionRequest struct {
	ID   string  `json:"id"`
	Cash float64 `json:"cash"`
}

type orderRequest struct {
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Kind     string    `json:"kind"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Time     time.Time `json:"time"`
}

type priceRequest struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

type priceResponse struct {
	Trades []order.Trade `json:"trades"`
	Error  string        `json:"error,omitempty"`
}

// orderView is the wire form of an order.
type orderView struct {
	ID            string     `json:"order_id"`
	Kind          string     `json:"kind"`
	Side          string     `json:"side"`
	Quantity      float64    `json:"quantity"`
	Price         *float64   `json:"price,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ExecutedPrice *float64   `json:"executed_price,omitempty"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	Note          string     `json:"note,omitempty"`
}

func viewOf(o order.Order) orderView {
	v := orderView{
		ID:        o.ID,
		Kind:      o.Kind.String(),
		Side:      o.Side.String(),
		Quantity:  o.Quantity,
		Status:    o.Status.String(),
		CreatedAt: o.CreatedAt,
		Note:      o.Note,
	}
	if p, ok := o.TriggerPrice(); ok {
		v.Price = &p
	}
	if p, ok := o.ExecutedPrice(); ok {
		v.ExecutedPrice = &p
	}
	if t, ok := o.ExecutedAt(); ok {
		v.ExecutedAt = &t
	}
	return v
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"uptime_sec": int64(time.Since(s.started).Seconds()),
		"sessions":   len(s.arena.Sessions()),
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.arena.Sessions()})
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "Invalid request body")
		return
	}
	if !(req.Cash > 0) {
		s.badRequest(w, "cash must be positive")
		return
	}

	cfg := s.session
	cfg.AccountID = req.ID
	id, b, err := s.arena.Open(cfg, req.Cash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.hub != nil {
		b.SetTradeListener(s.hub.Listener(id))
	}
	s.log.WithFields(logrus.Fields{"session": id, "cash": req.Cash}).Info("session opened")
	s.writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session"]
	if _, err := s.arena.Get(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.arena.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// broker resolves the {session} route variable or writes a 404.
func (s *Server) broker(w http.ResponseWriter, r *http.Request) (*sim.Broker, bool) {
	b, err := s.arena.Get(mux.Vars(r)["session"])
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return b, true
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, b.Account())
}

func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "Invalid request body")
		return
	}
	side, err := market.ParseSide(req.Side)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	kind := order.Market
	if req.Kind != "" {
		if kind, err = order.ParseKind(req.Kind); err != nil {
			s.badRequest(w, err.Error())
			return
		}
	}
	ts := req.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	oid, err := b.SubmitOrder(r.Context(), req.Symbol, order.New(kind, side, req.Quantity, req.Price, ts))
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := b.Order(oid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, viewOf(snap))
}

func (s *Server) openOrders(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	orders, err := b.OpenOrders(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, viewOf(o))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) orderStatus(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	o, err := b.Order(mux.Vars(r)["order"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(o))
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	if err := b.CancelOrder(r.Context(), mux.Vars(r)["order"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updatePrice(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "Invalid request body")
		return
	}
	ts := req.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	trades, err := b.UpdateMarketPrice(r.Context(), req.Symbol, req.Price, ts)
	if errors.Is(err, matching.ErrInvalidPrice) || errors.Is(err, broker.ErrInvalidSymbol) {
		s.writeError(w, err)
		return
	}
	resp := priceResponse{Trades: trades}
	if resp.Trades == nil {
		resp.Trades = []order.Trade{}
	}
	if err != nil {
		// fills were refused but the tick itself was applied
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) trades(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	history, err := b.TradeHistory(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if history == nil {
		history = []order.Trade{}
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) equity(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, b.EquityCurve())
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	b, ok := s.broker(w, r)
	if !ok {
		return
	}
	var bench float64
	if q := r.URL.Query().Get("benchmark"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			s.badRequest(w, "benchmark must be a number")
			return
		}
		bench = v
	}
	s.writeJSON(w, http.StatusOK, b.Metrics(bench))
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeJSON(w, http.StatusOK, []journal.BacktestRun{})
		return
	}
	runs, err := s.runs.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []journal.BacktestRun{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) runResult(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, journal.ErrNotFound)
		return
	}
	run, err := s.runs.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrSessionNotFound),
		errors.Is(err, broker.ErrOrderNotFound),
		errors.Is(err, journal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrInvalidOrder),
		errors.Is(err, broker.ErrInvalidSymbol),
		errors.Is(err, matching.ErrInvalidPrice),
		errors.Is(err, risk.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, broker.ErrInsufficientBalance),
		errors.Is(err, broker.ErrInsufficientPosition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, matching.ErrSymbolNotConfigured),
		errors.Is(err, sim.ErrSessionExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	entry := s.log.WithError(err).WithField("status", code)
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

// badRequest rejects a malformed request with the same JSON body as
// domain errors.
func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.log.WithField("status", http.StatusBadRequest).Debug(msg)
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of a 200 with an empty body.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).WithField("status", code).Error("encode response")
		code = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
