package paystackwebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vendora-market/vendora-backend/internal/settlement"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/paystack"
)

const eventChargeSuccess = "charge.success"

type transactionVerifier interface {
	Verify(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// Event is the decoded Paystack webhook payload.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// ParseEvent decodes the raw webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paystack event")
	}
	return &event, nil
}

type ServiceParams struct {
	Settlement settlement.Service
	Paystack   transactionVerifier
}

type Service struct {
	settlement settlement.Service
	paystack   transactionVerifier
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.Paystack == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "paystack client required")
	}
	return &Service{
		settlement: params.Settlement,
		paystack:   params.Paystack,
	}, nil
}

// HandleEvent settles a successful charge. The webhook payload is only a
// hint: the authoritative amounts come from the verify API, which carries
// both the captured total and the processor fee, so one delivery drives
// both settlement latches.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "paystack event required")
	}
	if !strings.EqualFold(event.Event, eventChargeSuccess) {
		return nil
	}
	if event.Data.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction reference missing")
	}

	transaction, err := s.paystack.Verify(ctx, event.Data.Reference)
	if err != nil {
		return err
	}
	if !transaction.Succeeded() {
		return nil
	}

	completed := settlement.SessionCompleted{
		Gateway:     enums.GatewayPaystack,
		SessionID:   transaction.Reference,
		CompletedAt: transaction.PaidAt,
	}
	if err := s.settlement.HandleSessionCompleted(ctx, completed); err != nil {
		return err
	}

	return s.settlement.HandleChargeSettled(ctx, settlement.ChargeSettled{
		Gateway:       enums.GatewayPaystack,
		SessionID:     transaction.Reference,
		ProcessorFee:  transaction.Fees,
		CapturedTotal: transaction.Amount,
	})
}
