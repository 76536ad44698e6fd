package notifications

import (
	"context"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

// Notifier receives settlement lifecycle callouts. Delivery is best
// effort and must never fail the surrounding transaction.
type Notifier interface {
	OrderPaid(ctx context.Context, order models.Order)
	PayoutCompleted(ctx context.Context, payout models.Payout)
}

type logNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier builds a notifier that records events in the service log.
func NewLogNotifier(logg *logger.Logger) Notifier {
	return &logNotifier{logg: logg}
}

func (n *logNotifier) OrderPaid(ctx context.Context, order models.Order) {
	if n.logg == nil {
		return
	}
	ctx = n.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"vendor_user_id": order.VendorUserID.String(),
		"total_price":    order.TotalPrice.String(),
	})
	n.logg.Info(ctx, "order paid notification")
}

func (n *logNotifier) PayoutCompleted(ctx context.Context, payout models.Payout) {
	if n.logg == nil {
		return
	}
	ctx = n.logg.WithFields(ctx, map[string]any{
		"payout_id":      payout.ID.String(),
		"vendor_user_id": payout.VendorUserID.String(),
		"amount":         payout.Amount.String(),
	})
	n.logg.Info(ctx, "payout completed notification")
}
