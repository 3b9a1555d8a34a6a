package exchange

import (
	"testing"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"

	"tradingbot/internal/models"
)

func TestSideType(t *testing.T) {
	assert.Equal(t, futures.SideTypeBuy, sideType(models.Buy))
	assert.Equal(t, futures.SideTypeSell, sideType(models.Sell))
}

func TestProtectiveOrderTypes(t *testing.T) {
	// The create-order endpoint expects these exact strings.
	assert.Equal(t, futures.OrderType("STOP_MARKET"), orderTypeStopMarket)
	assert.Equal(t, futures.OrderType("TAKE_PROFIT_MARKET"), orderTypeTakeProfitMarket)
}

func TestFormatQty(t *testing.T) {
	assert.Equal(t, "0.123457", formatQty(0.123456789))
	assert.Equal(t, "10", formatQty(10.0))
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 43250.5, parseFloat("43250.50"))
	assert.Zero(t, parseFloat("not a number"))
}
