package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewHolder_BuiltInDefaults(t *testing.T) {
	holder, err := newHolder(zaptest.NewLogger(t), t.TempDir())
	require.NoError(t, err)

	cat := holder.Get()
	want := Default()

	assert.Equal(t, want.DefaultTaxCategory, cat.DefaultTaxCategory)
	assert.Equal(t, want.Precision, cat.Precision)
	assert.True(t, cat.AutoCalculateTax)
	require.Len(t, cat.TaxCategories, len(want.TaxCategories))
	for code, expected := range want.TaxCategories {
		got, ok := cat.TaxCategory(code)
		require.True(t, ok, code)
		assert.Equal(t, expected.ShortCode, got.ShortCode, code)
		assert.True(t, expected.DefaultRate.Equal(got.DefaultRate), code)
	}
	assert.Len(t, cat.Exemptions, 6)
	assert.True(t, cat.HasInvoiceType("PROFORMA"))
	assert.True(t, cat.HasTransactionType("CREDIT_NOTE"))
}

func TestNewHolder_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `zra:
  default_tax_category: gst
  default_invoice_type: NORMAL
  default_transaction_type: SALE
  tax_rounding: 3
  tax_categories:
    gst:
      name: Goods and Services Tax
      default_rate: "7.5"
    none:
      name: Untaxed
      default_rate: 0
  exemption_categories:
    ngo: Non-Governmental Organization
  invoice_types:
    NORMAL: Normal Invoice
  transaction_types:
    SALE: Sale
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zra.yml"), []byte(content), 0o600))
	t.Setenv("ZRA_TAX_ROUNDING", "4")

	// The file watcher outlives the test, so keep its logger detached.
	holder, err := newHolder(zap.NewNop(), dir)
	require.NoError(t, err)

	cat := holder.Get()
	assert.Equal(t, "GST", cat.DefaultTaxCategory)
	assert.Equal(t, int32(4), cat.Precision)

	gst, ok := cat.TaxCategory("GST")
	require.True(t, ok)
	assert.Equal(t, "7.5", gst.DefaultRate.String())
	assert.Equal(t, "GST", gst.ShortCode)

	_, ok = cat.Exemption("NGO")
	assert.True(t, ok)
}

func TestNewHolder_PartialFileKeepsScalarDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `zra:
  tax_categories:
    VAT:
      name: Value Added Tax
      default_rate: 16
  invoice_types:
    NORMAL: Normal Invoice
  transaction_types:
    SALE: Sale
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zra.yml"), []byte(content), 0o600))

	holder, err := newHolder(zap.NewNop(), dir)
	require.NoError(t, err)

	cat := holder.Get()
	assert.Equal(t, int32(2), cat.Precision)
	assert.True(t, cat.AutoCalculateTax)
	assert.False(t, cat.DropZeroSummary)
	assert.Equal(t, "VAT", cat.DefaultTaxCategory)
	assert.Equal(t, "NORMAL", cat.DefaultInvoiceType)
	assert.Equal(t, "SALE", cat.DefaultTransactionType)
}

func TestNewHolder_RejectsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	content := `zra:
  default_tax_category: VAT
  default_invoice_type: NORMAL
  default_transaction_type: SALE
  tax_categories:
    VAT:
      name: Value Added Tax
      default_rate: -1
  invoice_types:
    NORMAL: Normal Invoice
  transaction_types:
    SALE: Sale
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zra.yml"), []byte(content), 0o600))

	_, err := newHolder(zap.NewNop(), dir)
	assert.True(t, errors.Is(err, ErrNegativeRate))
}

func TestCatalogValidate(t *testing.T) {
	cat := Default()
	require.NoError(t, cat.Validate())

	cat.DefaultInvoiceType = "RECEIPT"
	assert.True(t, errors.Is(cat.Validate(), ErrUnknownDefault))

	cat = Default()
	cat.Precision = 9
	assert.True(t, errors.Is(cat.Validate(), ErrInvalidPrecision))

	cat = Default()
	cat.TaxCategories = nil
	assert.True(t, errors.Is(cat.Validate(), ErrEmptyTaxCategories))
}

func TestStaticHolder(t *testing.T) {
	cat := Default()
	cat.Precision = 0
	holder := NewStaticHolder(cat)
	assert.Equal(t, int32(0), holder.Get().Precision)
}
