package exchange

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"tradingbot/internal/models"
)

// ErrExecutionFailed marks order/close failures that are retryable on the
// next tick. Position state must not change when it is returned.
var ErrExecutionFailed = errors.New("execution failed")

// ExchangeClient is the market-data and execution interface for both real
// and paper trading
type ExchangeClient interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	GetKlinesFrom(ctx context.Context, symbol, interval string, limit int, startTime int64) ([]Kline, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	PlaceOrder(ctx context.Context, symbol string, side models.Direction, quantity, stopLoss, takeProfit float64) (*OrderFill, error)
	ClosePosition(ctx context.Context, symbol string, side models.Direction, quantity float64) (*OrderFill, error)
	GetBalance(ctx context.Context) (float64, error)
}

type Kline struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// OrderFill is the confirmation returned by order placement
type OrderFill struct {
	Price    float64
	Quantity float64
	Status   string
}

// Stop-market order types accepted by the futures create-order endpoint.
// The client library only declares constants for LIMIT/MARKET/LIQUIDATION.
const (
	orderTypeStopMarket       futures.OrderType = "STOP_MARKET"
	orderTypeTakeProfitMarket futures.OrderType = "TAKE_PROFIT_MARKET"
)

// FuturesClient - real Binance Futures client
type FuturesClient struct {
	client *futures.Client
}

func NewFuturesClient(apiKey, secretKey string, testnet bool) *FuturesClient {
	if testnet {
		futures.UseTestnet = true
	}
	return &FuturesClient{client: futures.NewClient(apiKey, secretKey)}
}

func (b *FuturesClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	return b.fetchKlines(ctx, symbol, interval, limit, 0)
}

func (b *FuturesClient) GetKlinesFrom(ctx context.Context, symbol, interval string, limit int, startTime int64) ([]Kline, error) {
	return b.fetchKlines(ctx, symbol, interval, limit, startTime)
}

func (b *FuturesClient) fetchKlines(ctx context.Context, symbol, interval string, limit int, startTime int64) ([]Kline, error) {
	svc := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit)
	if startTime > 0 {
		svc = svc.StartTime(startTime)
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Kline, len(klines))
	for i, k := range klines {
		result[i] = Kline{
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			CloseTime: time.UnixMilli(k.CloseTime),
		}
	}
	return result, nil
}

func (b *FuturesClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price data for %s", symbol)
	}
	return parseFloat(prices[0].Price), nil
}

func (b *FuturesClient) PlaceOrder(ctx context.Context, symbol string, side models.Direction, quantity, stopLoss, takeProfit float64) (*OrderFill, error) {
	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(quantity)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	if order.Status != futures.OrderStatusTypeFilled {
		return nil, fmt.Errorf("%w: order %d status %s", ErrExecutionFailed, order.OrderID, order.Status)
	}

	// Protective orders on the exchange side. Best effort: the engine also
	// tracks SL/TP itself, so a rejected bracket does not fail the entry.
	closeSide := sideType(side.Opposite())
	if stopLoss > 0 {
		if _, err := b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(closeSide).
			Type(orderTypeStopMarket).
			StopPrice(formatQty(stopLoss)).
			Quantity(formatQty(quantity)).
			Do(ctx); err != nil {
			log.Printf("⚠️ Stop loss order rejected for %s: %v", symbol, err)
		}
	}
	if takeProfit > 0 {
		if _, err := b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(closeSide).
			Type(orderTypeTakeProfitMarket).
			StopPrice(formatQty(takeProfit)).
			Quantity(formatQty(quantity)).
			Do(ctx); err != nil {
			log.Printf("⚠️ Take profit order rejected for %s: %v", symbol, err)
		}
	}

	return &OrderFill{
		Price:    parseFloat(order.AvgPrice),
		Quantity: parseFloat(order.ExecutedQuantity),
		Status:   string(order.Status),
	}, nil
}

func (b *FuturesClient) ClosePosition(ctx context.Context, symbol string, side models.Direction, quantity float64) (*OrderFill, error) {
	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(side.Opposite())).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(quantity)).
		ReduceOnly(true).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	if order.Status != futures.OrderStatusTypeFilled {
		return nil, fmt.Errorf("%w: close order %d status %s", ErrExecutionFailed, order.OrderID, order.Status)
	}
	return &OrderFill{
		Price:    parseFloat(order.AvgPrice),
		Quantity: parseFloat(order.ExecutedQuantity),
		Status:   string(order.Status),
	}, nil
}

func (b *FuturesClient) GetBalance(ctx context.Context) (float64, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, err
	}

	for _, asset := range account.Assets {
		if asset.Asset == "USDT" {
			return parseFloat(asset.WalletBalance), nil
		}
	}
	return 0, nil
}

func sideType(d models.Direction) futures.SideType {
	if d == models.Sell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func formatQty(q float64) string {
	return decimal.NewFromFloat(q).Round(6).String()
}

// parseFloat converts a Binance string price without the precision loss of
// naive scanning
func parseFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
