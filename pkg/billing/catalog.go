package billing

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog configures the billing kinds and lists what can be bought.
type Catalog struct {
	Kinds  map[string]KindConfig
	Plans  map[string]Plan
	AddOns map[string]AddOnOffer
}

// KindConfig is the lifecycle configuration of one kind.
type KindConfig struct {
	CollectionKey  string
	ExpiryReminder string
	StartReminder  string
	// Duration is the default active period. Zero never expires.
	Duration  time.Duration
	AutoStart bool
}

// Plan is a subscription plan.
type Plan struct {
	ID           string
	Duration     time.Duration
	Price        decimal.Decimal
	Currency     string
	ListingQuota int
}

// AddOnOffer is an add-on that can be attached to a subscription.
type AddOnOffer struct {
	ID        string
	UnitPrice decimal.Decimal
	Currency  string
}

type catalogFile struct {
	Kinds map[string]struct {
		CollectionKey  string `yaml:"collection_key"`
		ExpiryReminder string `yaml:"expiry_reminder"`
		StartReminder  string `yaml:"start_reminder"`
		Duration       string `yaml:"duration"`
		AutoStart      bool   `yaml:"auto_start"`
	} `yaml:"kinds"`
	Plans map[string]struct {
		Duration     string `yaml:"duration"`
		Price        string `yaml:"price"`
		Currency     string `yaml:"currency"`
		ListingQuota int    `yaml:"listing_quota"`
	} `yaml:"plans"`
	AddOns map[string]struct {
		UnitPrice string `yaml:"unit_price"`
		Currency  string `yaml:"currency"`
	} `yaml:"add_ons"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalogFile reads a catalog from a YAML file.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("billing: open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog reads a catalog from r.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("billing: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML catalog. Every kind must be configured.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw catalogFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	cat := &Catalog{
		Kinds:  make(map[string]KindConfig, len(raw.Kinds)),
		Plans:  make(map[string]Plan, len(raw.Plans)),
		AddOns: make(map[string]AddOnOffer, len(raw.AddOns)),
	}

	for name, k := range raw.Kinds {
		d, err := parseDuration(k.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w: kind %s: %w", ErrInvalidCatalog, name, err)
		}
		cat.Kinds[name] = KindConfig{
			CollectionKey:  k.CollectionKey,
			ExpiryReminder: k.ExpiryReminder,
			StartReminder:  k.StartReminder,
			Duration:       d,
			AutoStart:      k.AutoStart,
		}
	}

	for id, p := range raw.Plans {
		d, err := parseDuration(p.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w: plan %s: %w", ErrInvalidCatalog, id, err)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: plan %s price: %w", ErrInvalidCatalog, id, err)
		}
		if err := validateMoney(price, p.Currency, false); err != nil {
			return nil, fmt.Errorf("%w: plan %s: %w", ErrInvalidCatalog, id, err)
		}
		cat.Plans[id] = Plan{
			ID:           id,
			Duration:     d,
			Price:        price,
			Currency:     p.Currency,
			ListingQuota: p.ListingQuota,
		}
	}

	for id, a := range raw.AddOns {
		price, err := decimal.NewFromString(a.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: add-on %s price: %w", ErrInvalidCatalog, id, err)
		}
		if err := validateMoney(price, a.Currency, false); err != nil {
			return nil, fmt.Errorf("%w: add-on %s: %w", ErrInvalidCatalog, id, err)
		}
		cat.AddOns[id] = AddOnOffer{ID: id, UnitPrice: price, Currency: a.Currency}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks that every kind is configured with a distinct collection key.
func (c *Catalog) Validate() error {
	seen := make(map[string]string, len(Kinds))
	for _, kind := range Kinds {
		k, ok := c.Kinds[kind]
		if !ok {
			return fmt.Errorf("%w: kind %s is not configured", ErrInvalidCatalog, kind)
		}
		if k.CollectionKey == "" {
			return fmt.Errorf("%w: kind %s has no collection_key", ErrInvalidCatalog, kind)
		}
		if other, dup := seen[k.CollectionKey]; dup {
			return fmt.Errorf("%w: kinds %s and %s share collection_key %q", ErrInvalidCatalog, other, kind, k.CollectionKey)
		}
		seen[k.CollectionKey] = kind
	}
	for name := range c.Kinds {
		if !slices.Contains(Kinds, name) {
			return fmt.Errorf("%w: %w: %s", ErrInvalidCatalog, ErrUnknownKind, name)
		}
	}
	return nil
}

// Kind returns the configuration of kind.
func (c *Catalog) Kind(kind string) (KindConfig, error) {
	k, ok := c.Kinds[kind]
	if !ok {
		return KindConfig{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return k, nil
}

// Plan returns the plan with the given ID.
func (c *Catalog) Plan(id string) (Plan, error) {
	p, ok := c.Plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, id)
	}
	return p, nil
}

// AddOn returns the add-on offer with the given ID.
func (c *Catalog) AddOn(id string) (AddOnOffer, error) {
	a, ok := c.AddOns[id]
	if !ok {
		return AddOnOffer{}, fmt.Errorf("%w: add-on %s", ErrUnknownPlan, id)
	}
	return a, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
