package ports

import (
	"context"

	"github.com/alejandrodnm/sentinel/internal/domain"
)

// TradeNotifier is told about every trade that leaves PENDING.
type TradeNotifier interface {
	TradeSettled(ctx context.Context, trade domain.Trade) error
}
