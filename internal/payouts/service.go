package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/notifications"
	"github.com/vendora-market/vendora-backend/internal/vendors"
	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Transferrer moves a vendor's share to their gateway account. The call
// runs inside the payout transaction: a failed transfer rolls the
// payout row back.
type Transferrer interface {
	Transfer(ctx context.Context, vendor models.Vendor, amount decimal.Decimal, currency enums.Currency) error
}

// Service runs the monthly payout sweep.
type Service interface {
	RunPayouts(ctx context.Context) error
}

// ServiceParams bundles the payout service dependencies.
type ServiceParams struct {
	Tx          txRunner
	Repo        Repository
	VendorsRepo vendors.Repository
	Transferrer Transferrer
	Outbox      outboxPublisher
	Notifier    notifications.Notifier
	Platform    config.PlatformConfig
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	tx          txRunner
	repo        Repository
	vendorsRepo vendors.Repository
	transferrer Transferrer
	outbox      outboxPublisher
	notifier    notifications.Notifier
	platform    config.PlatformConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the payout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.VendorsRepo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if params.Transferrer == nil {
		return nil, fmt.Errorf("transferrer required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:          params.Tx,
		repo:        params.Repo,
		vendorsRepo: params.VendorsRepo,
		transferrer: params.Transferrer,
		outbox:      params.Outbox,
		notifier:    params.Notifier,
		platform:    params.Platform,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// RunPayouts sweeps every payout-eligible vendor. A failure for one
// vendor is recorded and does not stop the sweep for the others.
func (s *service) RunPayouts(ctx context.Context) error {
	eligible, err := s.vendorsRepo.ListPayoutEligible(ctx)
	if err != nil {
		return fmt.Errorf("list payout eligible vendors: %w", err)
	}

	var errs []error
	paidCount := 0
	for _, vendor := range eligible {
		paid, err := s.payVendor(ctx, vendor)
		if err != nil {
			vendorCtx := s.logg.WithVendorID(ctx, vendor.UserID.String())
			s.logg.Error(vendorCtx, "vendor payout failed", err)
			errs = append(errs, fmt.Errorf("vendor %s: %w", vendor.UserID, err))
			continue
		}
		if paid {
			paidCount++
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"eligible": len(eligible),
		"paid":     paidCount,
		"failed":   len(errs),
	})
	s.logg.Info(logCtx, "payout sweep complete")
	return multierr.Combine(errs...)
}

// payVendor settles one vendor's window. The window runs from the end
// of the vendor's previous payout (or the epoch on the first run) up to
// but excluding the first instant of the current month, so the month in
// progress is never paid early.
func (s *service) payVendor(ctx context.Context, vendor models.Vendor) (bool, error) {
	currency, err := s.platform.CurrencyEnum()
	if err != nil {
		return false, err
	}
	if vendor.GatewayAccountID == nil || *vendor.GatewayAccountID == "" {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "vendor has no gateway account")
	}

	var created *models.Payout
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		until := startOfMonth(s.now().UTC())
		startingFrom := time.Unix(0, 0).UTC()
		latest, err := repo.LatestWindowEnd(ctx, vendor.UserID)
		if err != nil {
			return err
		}
		if latest != nil {
			startingFrom = latest.UTC()
		}
		if !until.After(startingFrom) {
			return nil
		}

		amount, err := repo.SumVendorSubtotal(ctx, vendor.UserID, startingFrom, until)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return nil
		}

		payout := &models.Payout{
			ID:           uuid.New(),
			VendorUserID: vendor.UserID,
			Amount:       amount,
			StartingFrom: startingFrom,
			Until:        until,
		}
		payout, err = repo.CreatePayout(ctx, payout)
		if err != nil {
			return err
		}

		if err := s.transferrer.Transfer(ctx, vendor, amount, currency); err != nil {
			return err
		}

		if err := s.emitPayoutCompleted(ctx, tx, payout); err != nil {
			return err
		}
		created = payout
		return nil
	})
	if err != nil {
		return false, err
	}
	if created == nil {
		return false, nil
	}

	s.notifier.PayoutCompleted(ctx, *created)
	return true, nil
}

func (s *service) emitPayoutCompleted(ctx context.Context, tx *gorm.DB, payout *models.Payout) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventPayoutCompleted,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Data: payoutCompletedEvent{
			PayoutID:     payout.ID,
			VendorUserID: payout.VendorUserID,
			Amount:       payout.Amount,
			StartingFrom: payout.StartingFrom,
			Until:        payout.Until,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}

type payoutCompletedEvent struct {
	PayoutID     uuid.UUID       `json:"payoutId"`
	VendorUserID uuid.UUID       `json:"vendorUserId"`
	Amount       decimal.Decimal `json:"amount"`
	StartingFrom time.Time       `json:"startingFrom"`
	Until        time.Time       `json:"until"`
}

// startOfMonth truncates t to the first instant of its month in UTC.
func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
