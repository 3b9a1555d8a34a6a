package exchange

import (
	"context"
	"fmt"
	"log"
	"sync"

	"tradingbot/internal/models"
)

// PaperClient simulates order execution against live market data. It wraps
// any base client for data calls and fills orders at the current price.
type PaperClient struct {
	balance float64
	mu      sync.RWMutex
	baseAPI ExchangeClient
}

func NewPaperClient(initialBalance float64, api ExchangeClient) *PaperClient {
	return &PaperClient{
		balance: initialBalance,
		baseAPI: api,
	}
}

func (p *PaperClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	return p.baseAPI.GetKlines(ctx, symbol, interval, limit)
}

func (p *PaperClient) GetKlinesFrom(ctx context.Context, symbol, interval string, limit int, startTime int64) ([]Kline, error) {
	return p.baseAPI.GetKlinesFrom(ctx, symbol, interval, limit, startTime)
}

func (p *PaperClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return p.baseAPI.GetPrice(ctx, symbol)
}

func (p *PaperClient) PlaceOrder(ctx context.Context, symbol string, side models.Direction, quantity, stopLoss, takeProfit float64) (*OrderFill, error) {
	price, err := p.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if price*quantity > p.balance {
		return nil, fmt.Errorf("%w: insufficient balance %.2f USDT", ErrExecutionFailed, p.balance)
	}

	log.Printf("📝 Paper: Filled %s %s at %.4f | Qty: %.6f | SL: %.4f | TP: %.4f",
		side, symbol, price, quantity, stopLoss, takeProfit)

	return &OrderFill{Price: price, Quantity: quantity, Status: "FILLED"}, nil
}

func (p *PaperClient) ClosePosition(ctx context.Context, symbol string, side models.Direction, quantity float64) (*OrderFill, error) {
	price, err := p.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	log.Printf("📝 Paper: Closed %s %s at %.4f | Qty: %.6f", side, symbol, price, quantity)
	return &OrderFill{Price: price, Quantity: quantity, Status: "FILLED"}, nil
}

func (p *PaperClient) GetBalance(ctx context.Context) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance, nil
}

// Credit adjusts the paper balance by the given delta. The engine calls this
// with realized P&L when a trade settles.
func (p *PaperClient) Credit(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance += delta
}
