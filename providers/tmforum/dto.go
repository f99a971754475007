package tmforum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-contracts/core"
)

// Ref is the TMForum entity reference shape shared by most relations.
type Ref struct {
	ID   string `json:"id"`
	Href string `json:"href,omitempty"`
	Name string `json:"name,omitempty"`
}

type RelatedParty struct {
	ID   string `json:"id"`
	Href string `json:"href,omitempty"`
	Role string `json:"role,omitempty"`
}

type ProductOffering struct {
	ID                   string `json:"id"`
	Href                 string `json:"href,omitempty"`
	Name                 string `json:"name,omitempty"`
	LifecycleStatus      string `json:"lifecycleStatus,omitempty"`
	Category             []Ref  `json:"category,omitempty"`
	ProductSpecification *Ref   `json:"productSpecification,omitempty"`
}

type CharacteristicValue struct {
	Value     any    `json:"value"`
	IsDefault bool   `json:"isDefault,omitempty"`
	ValueType string `json:"valueType,omitempty"`
}

type SpecCharacteristic struct {
	ID        string                `json:"id,omitempty"`
	Name      string                `json:"name,omitempty"`
	ValueType string                `json:"valueType,omitempty"`
	Values    []CharacteristicValue `json:"productSpecCharacteristicValue,omitempty"`
}

type ProductSpecification struct {
	ID              string               `json:"id"`
	Name            string               `json:"name,omitempty"`
	Characteristics []SpecCharacteristic `json:"productSpecCharacteristic,omitempty"`
	RelatedParty    []RelatedParty       `json:"relatedParty,omitempty"`
}

type Money struct {
	Unit  string  `json:"unit,omitempty"`
	Value float64 `json:"value"`
}

type ProductOfferingPrice struct {
	ID                          string `json:"id"`
	Name                        string `json:"name,omitempty"`
	PriceType                   string `json:"priceType,omitempty"`
	RecurringChargePeriodType   string `json:"recurringChargePeriodType,omitempty"`
	RecurringChargePeriodLength int    `json:"recurringChargePeriodLength,omitempty"`
	Price                       *Money `json:"price,omitempty"`
}

// ItemPriceAmount is the inline price of a quote item. TaxIncludedAmount wins
// over DutyFreeAmount when both are present.
type ItemPriceAmount struct {
	TaxIncludedAmount *Money `json:"taxIncludedAmount,omitempty"`
	DutyFreeAmount    *Money `json:"dutyFreeAmount,omitempty"`
}

type QuoteItemPrice struct {
	Name                        string           `json:"name,omitempty"`
	PriceType                   string           `json:"priceType,omitempty"`
	RecurringChargePeriod       string           `json:"recurringChargePeriod,omitempty"`
	RecurringChargePeriodLength int              `json:"recurringChargePeriodLength,omitempty"`
	Price                       *ItemPriceAmount `json:"price,omitempty"`
	ProductOfferingPrice        *Ref             `json:"productOfferingPrice,omitempty"`
}

type QuoteItem struct {
	ID              string           `json:"id"`
	State           string           `json:"state,omitempty"`
	Action          string           `json:"action,omitempty"`
	ProductOffering *Ref             `json:"productOffering,omitempty"`
	QuoteItemPrice  []QuoteItemPrice `json:"quoteItemPrice,omitempty"`
}

type Quote struct {
	ID           string         `json:"id"`
	Href         string         `json:"href,omitempty"`
	State        string         `json:"state,omitempty"`
	ExternalID   string         `json:"externalId,omitempty"`
	QuoteItem    []QuoteItem    `json:"quoteItem,omitempty"`
	RelatedParty []RelatedParty `json:"relatedParty,omitempty"`
}

type ProductOrderItem struct {
	ID              string `json:"id"`
	Action          string `json:"action,omitempty"`
	ProductOffering *Ref   `json:"productOffering,omitempty"`
}

type ProductOrder struct {
	ID               string             `json:"id"`
	Href             string             `json:"href,omitempty"`
	State            string             `json:"state,omitempty"`
	ProductOrderItem []ProductOrderItem `json:"productOrderItem,omitempty"`
	Quote            []Ref              `json:"quote,omitempty"`
	Agreement        []Ref              `json:"agreement,omitempty"`
	RelatedParty     []RelatedParty     `json:"relatedParty,omitempty"`
}

type quoteExternalIDPatch struct {
	ExternalID string `json:"externalId"`
}

type orderAgreementPatch struct {
	Agreement []Ref `json:"agreement"`
}

func refID(ref *Ref) string {
	if ref == nil {
		return ""
	}
	return strings.TrimSpace(ref.ID)
}

func refIDs(refs []Ref) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := strings.TrimSpace(ref.ID); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func toCoreParties(parties []RelatedParty) []core.RelatedParty {
	if len(parties) == 0 {
		return nil
	}
	out := make([]core.RelatedParty, 0, len(parties))
	for _, party := range parties {
		out = append(out, core.RelatedParty{ID: strings.TrimSpace(party.ID), Role: strings.TrimSpace(party.Role)})
	}
	return out
}

func ToOffering(in ProductOffering) core.Offering {
	return core.Offering{
		ID:              strings.TrimSpace(in.ID),
		Name:            in.Name,
		LifecycleStatus: in.LifecycleStatus,
		CategoryIDs:     refIDs(in.Category),
		SpecificationID: refID(in.ProductSpecification),
	}
}

func ToSpecification(in ProductSpecification) core.Specification {
	characteristics := make([]core.SpecificationCharacteristic, 0, len(in.Characteristics))
	for _, characteristic := range in.Characteristics {
		values := make([]string, 0, len(characteristic.Values))
		for _, value := range characteristic.Values {
			if text := characteristicText(value.Value); text != "" {
				values = append(values, text)
			}
		}
		characteristics = append(characteristics, core.SpecificationCharacteristic{
			ID:        strings.TrimSpace(characteristic.ID),
			Name:      strings.TrimSpace(characteristic.Name),
			ValueType: characteristic.ValueType,
			Values:    values,
		})
	}
	return core.Specification{
		ID:              strings.TrimSpace(in.ID),
		Name:            in.Name,
		Characteristics: characteristics,
		RelatedParties:  toCoreParties(in.RelatedParty),
	}
}

func characteristicText(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func ToPrice(in ProductOfferingPrice) core.Price {
	price := core.Price{
		ID:                          strings.TrimSpace(in.ID),
		Name:                        in.Name,
		PriceType:                   core.PriceType(in.PriceType),
		RecurringChargePeriodType:   in.RecurringChargePeriodType,
		RecurringChargePeriodLength: in.RecurringChargePeriodLength,
	}
	if in.Price != nil {
		price.Amount = core.Money{Value: in.Price.Value, Unit: in.Price.Unit}
	}
	return price
}

func toCoreItemPrice(in QuoteItemPrice) core.QuoteItemPrice {
	out := core.QuoteItemPrice{PriceRef: refID(in.ProductOfferingPrice)}
	if in.Price == nil {
		return out
	}
	amount := in.Price.TaxIncludedAmount
	if amount == nil {
		amount = in.Price.DutyFreeAmount
	}
	if amount == nil {
		return out
	}
	out.Price = &core.Price{
		Name:                        in.Name,
		PriceType:                   core.PriceType(in.PriceType),
		RecurringChargePeriodType:   in.RecurringChargePeriod,
		RecurringChargePeriodLength: in.RecurringChargePeriodLength,
		Amount:                      core.Money{Value: amount.Value, Unit: amount.Unit},
	}
	return out
}

func ToQuote(in Quote) core.Quote {
	items := make([]core.QuoteItem, 0, len(in.QuoteItem))
	for _, item := range in.QuoteItem {
		prices := make([]core.QuoteItemPrice, 0, len(item.QuoteItemPrice))
		for _, price := range item.QuoteItemPrice {
			prices = append(prices, toCoreItemPrice(price))
		}
		items = append(items, core.QuoteItem{
			ID:         strings.TrimSpace(item.ID),
			OfferingID: refID(item.ProductOffering),
			State:      item.State,
			Action:     item.Action,
			Prices:     prices,
		})
	}
	return core.Quote{
		ID:             strings.TrimSpace(in.ID),
		State:          core.QuoteState(strings.TrimSpace(in.State)),
		ExternalID:     strings.TrimSpace(in.ExternalID),
		Items:          items,
		RelatedParties: toCoreParties(in.RelatedParty),
	}
}

func ToOrder(in ProductOrder) core.Order {
	items := make([]core.OrderItem, 0, len(in.ProductOrderItem))
	for _, item := range in.ProductOrderItem {
		items = append(items, core.OrderItem{
			ID:         strings.TrimSpace(item.ID),
			OfferingID: refID(item.ProductOffering),
			Action:     item.Action,
		})
	}
	return core.Order{
		ID:             strings.TrimSpace(in.ID),
		Items:          items,
		QuoteIDs:       refIDs(in.Quote),
		AgreementIDs:   refIDs(in.Agreement),
		RelatedParties: toCoreParties(in.RelatedParty),
	}
}
