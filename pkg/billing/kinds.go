package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Entity kinds. Each kind is also the actor type of its entities.
const (
	KindSubscription = "subscription"
	KindPayToPublish = "pay_to_publish"
	KindPayToFeature = "pay_to_feature"
	KindAddOn        = "add_on"
	KindPayment      = "payment"
)

// Kinds lists every kind.
var Kinds = []string{KindSubscription, KindPayToPublish, KindPayToFeature, KindAddOn, KindPayment}

// Subscription grants a plan for a period.
type Subscription struct {
	PlanID    string          `json:"plan_id"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	AutoRenew bool            `json:"auto_renew,omitempty"`
}

func (s Subscription) Validate() error {
	if s.PlanID == "" {
		return fmt.Errorf("%w: plan_id", ErrMissingField)
	}
	return validateMoney(s.Price, s.Currency, true)
}

// PayToPublish pays for publishing one listing.
type PayToPublish struct {
	ListingID  string          `json:"listing_id"`
	CategoryID string          `json:"category_id,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
}

func (p PayToPublish) Validate() error {
	if p.ListingID == "" {
		return fmt.Errorf("%w: listing_id", ErrMissingField)
	}
	return validateMoney(p.Price, p.Currency, false)
}

// PayToFeature pays for promoting one listing.
type PayToFeature struct {
	ListingID string          `json:"listing_id"`
	Placement string          `json:"placement"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
}

func (p PayToFeature) Validate() error {
	if p.ListingID == "" {
		return fmt.Errorf("%w: listing_id", ErrMissingField)
	}
	if p.Placement == "" {
		return fmt.Errorf("%w: placement", ErrMissingField)
	}
	return validateMoney(p.Price, p.Currency, false)
}

// AddOn extends a subscription.
type AddOn struct {
	SubscriptionID string          `json:"subscription_id"`
	AddOnID        string          `json:"add_on_id"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Currency       string          `json:"currency"`
}

func (a AddOn) Validate() error {
	switch {
	case a.SubscriptionID == "":
		return fmt.Errorf("%w: subscription_id", ErrMissingField)
	case a.AddOnID == "":
		return fmt.Errorf("%w: add_on_id", ErrMissingField)
	case a.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidAmount)
	}
	return validateMoney(a.UnitPrice, a.Currency, false)
}

// Total is UnitPrice times Quantity.
func (a AddOn) Total() decimal.Decimal {
	return a.UnitPrice.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

// Payment records money received for one or more entities.
type Payment struct {
	Reference string          `json:"reference"`
	Provider  string          `json:"provider,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Items     []PaymentItem   `json:"items,omitempty"`
}

// PaymentItem is the part of a payment that pays for one entity.
type PaymentItem struct {
	Kind     string          `json:"kind"`
	EntityID string          `json:"entity_id"`
	Amount   decimal.Decimal `json:"amount"`
}

func (p Payment) Validate() error {
	if p.Reference == "" {
		return fmt.Errorf("%w: reference", ErrMissingField)
	}
	if err := validateMoney(p.Amount, p.Currency, false); err != nil {
		return err
	}
	for i, item := range p.Items {
		if item.EntityID == "" || item.Kind == "" {
			return fmt.Errorf("%w: items[%d] kind and entity_id", ErrMissingField, i)
		}
		if item.Amount.IsNegative() {
			return fmt.Errorf("%w: items[%d] is negative", ErrInvalidAmount, i)
		}
	}
	if len(p.Items) > 0 && !p.ItemsTotal().Equal(p.Amount) {
		return fmt.Errorf("%w: items total %s does not match amount %s", ErrInvalidAmount, p.ItemsTotal(), p.Amount)
	}
	return nil
}

// ItemsTotal sums the item amounts.
func (p Payment) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// validateMoney accepts a zero amount without currency when optional is set;
// the plan price applies then.
func validateMoney(amount decimal.Decimal, currency string, optional bool) error {
	if optional && amount.IsZero() && currency == "" {
		return nil
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	if len(currency) != 3 || strings.ToUpper(currency) != currency {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	return nil
}
