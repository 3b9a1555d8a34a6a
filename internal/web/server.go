package web

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradingbot/internal/engine"
)

type Server struct {
	engine   *engine.TradingEngine
	port     string
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
}

func NewServer(engine *engine.TradingEngine, port string) *Server {
	return &Server{
		engine: engine,
		port:   port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) Start() {
	http.HandleFunc("/", s.handleIndex)
	http.HandleFunc("/api/stats", s.handleStats)
	http.HandleFunc("/api/positions", s.handlePositions)
	http.HandleFunc("/api/signal", s.handleSignal)
	http.HandleFunc("/api/health", s.handleHealth)
	http.HandleFunc("/api/backtest", s.handleBacktest)
	http.HandleFunc("/api/engine/action", s.handleEngineAction)
	http.HandleFunc("/ws", s.handleWS)

	log.Printf("🌐 Web server starting on http://localhost:%s", s.port)
	go func() {
		if err := http.ListenAndServe(":"+s.port, nil); err != nil {
			log.Printf("Web server error: %v", err)
		}
	}()
	go s.broadcastLoop()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func (s *Server) statsPayload() map[string]interface{} {
	stats, err := s.engine.Stats()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	positions := s.engine.Manager().OpenPositions()
	inPositions := 0.0
	for _, p := range positions {
		inPositions += p.EntryPrice * p.Quantity
	}

	return map[string]interface{}{
		"balance":        s.engine.Manager().Balance(),
		"in_positions":   inPositions,
		"open_positions": len(positions),
		"running":        s.engine.IsRunning(),
		"timestamp":      time.Now().Unix(),

		"total_trades":  stats.TotalTrades,
		"profitable":    stats.ProfitableTrades,
		"losing":        stats.LosingTrades,
		"win_rate":      stats.WinRate,
		"realized_pl":   stats.RealizedPL,
		"unrealized_pl": stats.UnrealizedPL,
		"total_pl":      stats.TotalPL,
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.statsPayload())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions := s.engine.Manager().OpenPositions()

	type positionResponse struct {
		ID         string  `json:"id"`
		Symbol     string  `json:"symbol"`
		Side       string  `json:"side"`
		EntryPrice float64 `json:"entry_price"`
		Quantity   float64 `json:"quantity"`
		TakeProfit float64 `json:"take_profit"`
		StopLoss   float64 `json:"stop_loss"`
		OpenTime   int64   `json:"open_time"`
		Reasoning  string  `json:"reasoning"`
	}

	response := make([]positionResponse, len(positions))
	for i, p := range positions {
		response[i] = positionResponse{
			ID:         p.ID,
			Symbol:     p.Symbol,
			Side:       string(p.Direction),
			EntryPrice: p.EntryPrice,
			Quantity:   p.Quantity,
			TakeProfit: p.TakeProfit,
			StopLoss:   p.StopLoss,
			OpenTime:   p.EntryTime.Unix(),
			Reasoning:  p.Reasoning,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	decision := s.engine.LastSignal()
	if decision == nil {
		http.Error(w, "no signal yet", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"direction":  decision.Direction,
		"score":      decision.Score,
		"strength":   decision.Strength,
		"confidence": decision.Confidence,
		"reasons":    decision.Reasons,
		"timestamp":  decision.Timestamp.Unix(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"running": s.engine.IsRunning(),
	})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := s.engine.RunBacktest(ctx, days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	// An all-winner run has an infinite profit factor, which JSON cannot
	// encode.
	var profitFactor interface{} = result.Report.ProfitFactor
	if math.IsInf(result.Report.ProfitFactor, 1) {
		profitFactor = nil
	}

	response := map[string]interface{}{
		"symbol":          result.Params.Symbol,
		"days":            days,
		"initial_balance": result.Params.InitialBalance,
		"final_balance":   result.FinalBalance,
		"total_trades":    result.Report.TotalTrades,
		"win_rate":        result.Report.WinRate,
		"profit_factor":   profitFactor,
		"total_pnl":       result.Report.TotalPnL,
		"sharpe_ratio":    result.Report.SharpeRatio,
		"max_drawdown":    result.Report.MaxDrawdown,
		"recovery_factor": result.Report.RecoveryFactor,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleEngineAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "start":
		s.engine.Start()
	case "stop":
		s.engine.Stop()
	case "close_all":
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		s.engine.CloseAllPositions(ctx)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop only drains control frames and detects disconnects.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcastLoop pushes the stats payload to all connected dashboards every
// few seconds.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		if len(s.clients) == 0 {
			s.mu.Unlock()
			continue
		}
		payload := s.statsPayload()
		for conn := range s.clients {
			if err := conn.WriteJSON(payload); err != nil {
				delete(s.clients, conn)
				conn.Close()
			}
		}
		s.mu.Unlock()
	}
}
