package flutterwavewebhook

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/vendora-market/vendora-backend/internal/settlement"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/flutterwave"
)

const eventChargeCompleted = "charge.completed"

type transactionVerifier interface {
	VerifyTransaction(ctx context.Context, transactionID string) (*flutterwave.Transaction, error)
}

// Event is the decoded Flutterwave webhook payload.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		TxRef     string `json:"tx_ref"`
		Status    string `json:"status"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}

// ParseEvent decodes the raw webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode flutterwave event")
	}
	return &event, nil
}

// EventID derives a stable idempotency key for the delivery. Flutterwave
// does not send a dedicated event id, so the transaction id stands in.
func (e *Event) EventID() string {
	return strconv.FormatInt(e.Data.ID, 10)
}

type ServiceParams struct {
	Settlement  settlement.Service
	Flutterwave transactionVerifier
}

type Service struct {
	settlement  settlement.Service
	flutterwave transactionVerifier
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.Flutterwave == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "flutterwave client required")
	}
	return &Service{
		settlement:  params.Settlement,
		flutterwave: params.Flutterwave,
	}, nil
}

// HandleEvent settles a completed charge. The payload is re-verified
// against the transactions API before anything is trusted: the verified
// response carries the captured amount and the app fee, driving both
// settlement latches from the single delivery.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "flutterwave event required")
	}
	if !strings.EqualFold(event.Event, eventChargeCompleted) {
		return nil
	}
	if event.Data.ID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id missing")
	}

	completedAt, _ := time.Parse(time.RFC3339, event.Data.CreatedAt)
	return s.settle(ctx, strconv.FormatInt(event.Data.ID, 10), completedAt)
}

// HandleTransaction settles a transaction by id, for the synchronous
// redirect callback where no event envelope exists.
func (s *Service) HandleTransaction(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	return s.settle(ctx, transactionID, time.Time{})
}

func (s *Service) settle(ctx context.Context, transactionID string, completedAt time.Time) error {
	transaction, err := s.flutterwave.VerifyTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if !transaction.Succeeded() {
		return nil
	}
	if transaction.TxRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction reference missing")
	}

	completed := settlement.SessionCompleted{
		Gateway:     enums.GatewayFlutterwave,
		SessionID:   transaction.TxRef,
		CompletedAt: completedAt,
	}
	if err := s.settlement.HandleSessionCompleted(ctx, completed); err != nil {
		return err
	}

	return s.settlement.HandleChargeSettled(ctx, settlement.ChargeSettled{
		Gateway:       enums.GatewayFlutterwave,
		SessionID:     transaction.TxRef,
		ProcessorFee:  transaction.AppFee,
		CapturedTotal: transaction.Amount,
	})
}
