package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	ActionUse        = "odrl:use"
	ActionCompensate = "odrl:compensate"

	OperandPayAmount   = "odrl:payAmount"
	OperandElapsedTime = "odrl:elapsedTime"
	OperatorEq         = "odrl:eq"

	OperandTypeDecimal  = "xsd:decimal"
	OperandTypeDuration = "xsd:duration"
)

type Constraint struct {
	LeftOperand      string
	Operator         string
	RightOperand     string
	RightOperandType string
	Unit             string
}

type Rule struct {
	Action      string
	Constraints []Constraint
}

// Offer is the policy the provider puts up for negotiation.
type Offer struct {
	ID          string
	Target      string
	Assigner    string
	Permissions []Rule
	Obligations []Rule
}

type NegotiationRequest struct {
	ConsumerPID string
	ConsumerDID string
	ProviderDID string
	Offer       Offer
}

func normalizePriceType(priceType PriceType) string {
	normalized := strings.ToLower(strings.TrimSpace(string(priceType)))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)
}

// ChargePeriodUnit maps a recurring charge period type onto the ISO-8601
// duration designator used in elapsed time constraints.
func ChargePeriodUnit(periodType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(periodType)) {
	case "monthly", "month":
		return "M", nil
	case "weekly", "week":
		return "W", nil
	default:
		return "", NewUnsupportedValueError("recurring charge period type", periodType)
	}
}

// PriceConstraints translates a price into the constraints of a compensation
// obligation.
func PriceConstraints(price Price) ([]Constraint, error) {
	payAmount := Constraint{
		LeftOperand:      OperandPayAmount,
		Operator:         OperatorEq,
		RightOperand:     strconv.FormatFloat(price.Amount.Value, 'f', -1, 64),
		RightOperandType: OperandTypeDecimal,
		Unit:             strings.TrimSpace(price.Amount.Unit),
	}

	switch normalizePriceType(price.PriceType) {
	case "onetime":
		return []Constraint{payAmount}, nil
	case "recurring":
		unit, err := ChargePeriodUnit(price.RecurringChargePeriodType)
		if err != nil {
			return nil, err
		}
		length := price.RecurringChargePeriodLength
		if length <= 0 {
			length = 1
		}
		return []Constraint{
			payAmount,
			{
				LeftOperand:      OperandElapsedTime,
				Operator:         OperatorEq,
				RightOperand:     fmt.Sprintf("P%d%s", length, unit),
				RightOperandType: OperandTypeDuration,
			},
		}, nil
	default:
		return nil, NewUnsupportedValueError("price type", string(price.PriceType))
	}
}

// validateInlinePrices rejects unsupported inline prices before any remote
// call is made. Referenced prices can only be checked once fetched.
func validateInlinePrices(prices []QuoteItemPrice) error {
	for _, price := range prices {
		if price.Price == nil {
			if strings.TrimSpace(price.PriceRef) == "" {
				return NewValidationError("quoteItem.quoteItemPrice", "price has neither a value nor a reference")
			}
			continue
		}
		if _, err := PriceConstraints(*price.Price); err != nil {
			return err
		}
	}
	return nil
}

// obligationsFor builds one compensation obligation per quote item price,
// fetching referenced offering prices first.
func (m *NegotiationStateMachine) obligationsFor(ctx context.Context, item QuoteItem) ([]Rule, error) {
	obligations := make([]Rule, 0, len(item.Prices))
	for _, itemPrice := range item.Prices {
		price, err := m.resolvePrice(ctx, itemPrice)
		if err != nil {
			return nil, err
		}
		constraints, err := PriceConstraints(price)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, Rule{
			Action:      ActionCompensate,
			Constraints: constraints,
		})
	}
	return obligations, nil
}

func (m *NegotiationStateMachine) resolvePrice(ctx context.Context, itemPrice QuoteItemPrice) (Price, error) {
	if itemPrice.Price != nil {
		return *itemPrice.Price, nil
	}
	priceID := strings.TrimSpace(itemPrice.PriceRef)
	price, err := m.commerce.GetPrice(ctx, priceID)
	if err != nil {
		return Price{}, NewDownstreamError(err, "get price", map[string]any{"price_id": priceID})
	}
	return price, nil
}
