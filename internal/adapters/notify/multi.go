package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/sentinel/internal/domain"
	"github.com/alejandrodnm/sentinel/internal/ports"
)

// Func adapts a plain function to ports.TradeNotifier.
type Func func(ctx context.Context, t domain.Trade) error

// TradeSettled calls f.
func (f Func) TradeSettled(ctx context.Context, t domain.Trade) error {
	return f(ctx, t)
}

// Multi reparte cada notificación a todos los destinos; un fallo no corta al resto.
type Multi []ports.TradeNotifier

// TradeSettled devuelve los errores de todos los destinos unidos.
func (m Multi) TradeSettled(ctx context.Context, t domain.Trade) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.TradeSettled(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
