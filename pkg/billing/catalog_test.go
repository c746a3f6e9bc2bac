package billing_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/actorkit/pkg/billing"
)

const minimalCatalog = `
kinds:
  subscription: {collection_key: subs, duration: 24h, auto_start: true}
  pay_to_publish: {collection_key: publish}
  pay_to_feature: {collection_key: feature, duration: 1h}
  add_on: {collection_key: addons, expiry_reminder: addon_expiry, start_reminder: addon_start}
  payment: {collection_key: payments}
plans:
  basic: {duration: 48h, price: "9.99", currency: EUR, listing_quota: 3}
add_ons:
  highlight: {unit_price: "2.50", currency: EUR}
`

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	cat, err := billing.DefaultCatalog()
	require.NoError(t, err)

	for _, kind := range billing.Kinds {
		k, err := cat.Kind(kind)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, k.CollectionKey, kind)
	}

	basic, err := cat.Plan("basic")
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, basic.Duration)
	assert.True(t, basic.Price.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, "USD", basic.Currency)

	payment, err := cat.Kind(billing.KindPayment)
	require.NoError(t, err)
	assert.Zero(t, payment.Duration)
}

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	cat, err := billing.ParseCatalog([]byte(minimalCatalog))
	require.NoError(t, err)

	sub, err := cat.Kind(billing.KindSubscription)
	require.NoError(t, err)
	assert.Equal(t, "subs", sub.CollectionKey)
	assert.Equal(t, 24*time.Hour, sub.Duration)
	assert.True(t, sub.AutoStart)

	addOn, err := cat.Kind(billing.KindAddOn)
	require.NoError(t, err)
	assert.Equal(t, "addon_expiry", addOn.ExpiryReminder)
	assert.Equal(t, "addon_start", addOn.StartReminder)
	assert.False(t, addOn.AutoStart)

	offer, err := cat.AddOn("highlight")
	require.NoError(t, err)
	assert.True(t, offer.UnitPrice.Equal(decimal.RequireFromString("2.5")))

	_, err = cat.Plan("missing")
	require.ErrorIs(t, err, billing.ErrUnknownPlan)
	_, err = cat.Kind("listing")
	require.ErrorIs(t, err, billing.ErrUnknownKind)
}

func TestParseCatalog_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		replace [2]string
		raw     string
	}{
		{name: "not yaml", raw: "kinds: [:"},
		{name: "missing kind", replace: [2]string{"  payment: {collection_key: payments}\n", ""}},
		{name: "shared collection key", replace: [2]string{"collection_key: payments", "collection_key: subs"}},
		{name: "empty collection key", replace: [2]string{"collection_key: payments", "collection_key: \"\""}},
		{name: "unknown kind", replace: [2]string{"plans:", "  listing: {collection_key: listings}\nplans:"}},
		{name: "bad duration", replace: [2]string{"duration: 24h", "duration: monthly"}},
		{name: "negative duration", replace: [2]string{"duration: 24h", "duration: -24h"}},
		{name: "bad price", replace: [2]string{`price: "9.99"`, `price: "nine"`}},
		{name: "negative price", replace: [2]string{`price: "9.99"`, `price: "-1"`}},
		{name: "bad currency", replace: [2]string{"currency: EUR, listing_quota", "currency: euro, listing_quota"}},
		{name: "bad add-on price", replace: [2]string{`unit_price: "2.50"`, `unit_price: ""`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := tt.raw
			if raw == "" {
				raw = strings.Replace(minimalCatalog, tt.replace[0], tt.replace[1], 1)
				require.NotEqual(t, minimalCatalog, raw)
			}
			_, err := billing.ParseCatalog([]byte(raw))
			require.ErrorIs(t, err, billing.ErrInvalidCatalog)
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalCatalog), 0o600))

	cat, err := billing.LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Len(t, cat.Plans, 1)

	_, err = billing.LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
