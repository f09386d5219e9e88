package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

//go:embed zra.default.yml
var defaultCatalogYAML []byte

var defaultSearchPaths = []string{
	"/var/lib/smartinvoice/config", // Volume-mounted config
	"/etc/smartinvoice",            // System config
	".",                            // Current directory (dev mode)
}

// Holder keeps the current catalog snapshot. A reload swaps the whole snapshot,
// so a unit of work that called Get keeps a consistent view.
type Holder struct {
	current atomic.Value // holds Catalog
}

// NewStaticHolder wraps a fixed catalog. Used by tests and tools that bypass viper.
func NewStaticHolder(c Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

func NewHolder(log *zap.Logger) (*Holder, error) {
	return newHolder(log, defaultSearchPaths...)
}

func newHolder(log *zap.Logger, paths ...string) (*Holder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("catalog")

	v := viper.New()
	v.SetConfigName("zra")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Scalar overrides keep the historical env names.
	_ = v.BindEnv("zra.default_tax_category", "ZRA_DEFAULT_TAX_CATEGORY")
	_ = v.BindEnv("zra.default_invoice_type", "ZRA_DEFAULT_INVOICE_TYPE")
	_ = v.BindEnv("zra.default_transaction_type", "ZRA_DEFAULT_TRANSACTION_TYPE")
	_ = v.BindEnv("zra.auto_calculate_tax", "ZRA_AUTO_CALCULATE_TAX")
	_ = v.BindEnv("zra.tax_rounding", "ZRA_TAX_ROUNDING")
	setDefaults(v, Default())

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fromFile = false
		if err := v.ReadConfig(bytes.NewReader(defaultCatalogYAML)); err != nil {
			return nil, fmt.Errorf("read default catalog: %w", err)
		}
	}

	cat, err := decode(v)
	if err != nil {
		return nil, err
	}

	holder := &Holder{}
	holder.current.Store(cat)

	if fromFile {
		log.Info("catalog loaded", zap.String("file", v.ConfigFileUsed()))
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decode(v)
			if err != nil {
				log.Warn("catalog reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("catalog reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	} else {
		log.Info("catalog file not found, using built-in defaults")
	}

	return holder, nil
}

// setDefaults covers scalar keys a partial zra.yml leaves out.
func setDefaults(v *viper.Viper, def Catalog) {
	v.SetDefault("zra.default_tax_category", def.DefaultTaxCategory)
	v.SetDefault("zra.default_invoice_type", def.DefaultInvoiceType)
	v.SetDefault("zra.default_transaction_type", def.DefaultTransactionType)
	v.SetDefault("zra.auto_calculate_tax", def.AutoCalculateTax)
	v.SetDefault("zra.tax_rounding", def.Precision)
	v.SetDefault("zra.drop_zero_summary", def.DropZeroSummary)
}

func (h *Holder) Get() Catalog {
	return h.current.Load().(Catalog)
}

type fileCatalog struct {
	DefaultTaxCategory     string                     `mapstructure:"default_tax_category"`
	DefaultInvoiceType     string                     `mapstructure:"default_invoice_type"`
	DefaultTransactionType string                     `mapstructure:"default_transaction_type"`
	AutoCalculateTax       bool                       `mapstructure:"auto_calculate_tax"`
	TaxRounding            int32                      `mapstructure:"tax_rounding"`
	DropZeroSummary        bool                       `mapstructure:"drop_zero_summary"`
	TaxCategories          map[string]fileTaxCategory `mapstructure:"tax_categories"`
	ExemptionCategories    map[string]string          `mapstructure:"exemption_categories"`
	InvoiceTypes           map[string]string          `mapstructure:"invoice_types"`
	TransactionTypes       map[string]string          `mapstructure:"transaction_types"`
}

type fileTaxCategory struct {
	Name        string `mapstructure:"name"`
	Code        string `mapstructure:"code"`
	DefaultRate string `mapstructure:"default_rate"`
	AppliesTo   string `mapstructure:"applies_to"`
}

// decode converts the viper tree into a validated Catalog. Viper lowercases map keys,
// so catalog codes are upper-cased back here.
func decode(v *viper.Viper) (Catalog, error) {
	var raw fileCatalog
	if err := v.UnmarshalKey("zra", &raw); err != nil {
		return Catalog{}, err
	}
	// UnmarshalKey only sees the file tree; scalar reads also honour the env binds.
	raw.DefaultTaxCategory = v.GetString("zra.default_tax_category")
	raw.DefaultInvoiceType = v.GetString("zra.default_invoice_type")
	raw.DefaultTransactionType = v.GetString("zra.default_transaction_type")
	raw.AutoCalculateTax = v.GetBool("zra.auto_calculate_tax")
	raw.TaxRounding = v.GetInt32("zra.tax_rounding")
	raw.DropZeroSummary = v.GetBool("zra.drop_zero_summary")

	cat := Catalog{
		TaxCategories:          make(map[string]TaxCategory, len(raw.TaxCategories)),
		Exemptions:             make(map[string]ExemptionCategory, len(raw.ExemptionCategories)),
		InvoiceTypes:           make(map[string]string, len(raw.InvoiceTypes)),
		TransactionTypes:       make(map[string]string, len(raw.TransactionTypes)),
		DefaultTaxCategory:     normalizeCode(raw.DefaultTaxCategory),
		DefaultInvoiceType:     normalizeCode(raw.DefaultInvoiceType),
		DefaultTransactionType: normalizeCode(raw.DefaultTransactionType),
		Precision:              raw.TaxRounding,
		AutoCalculateTax:       raw.AutoCalculateTax,
		DropZeroSummary:        raw.DropZeroSummary,
	}

	for key, item := range raw.TaxCategories {
		code := normalizeCode(key)
		rateValue := strings.TrimSpace(item.DefaultRate)
		if rateValue == "" {
			rateValue = "0"
		}
		rate, err := decimal.NewFromString(rateValue)
		if err != nil {
			return Catalog{}, fmt.Errorf("tax category %s: invalid default_rate %q: %w", code, item.DefaultRate, err)
		}
		shortCode := strings.TrimSpace(item.Code)
		if shortCode == "" {
			shortCode = code
		}
		cat.TaxCategories[code] = TaxCategory{
			Code:        code,
			ShortCode:   shortCode,
			Name:        strings.TrimSpace(item.Name),
			DefaultRate: rate,
			AppliesTo:   strings.TrimSpace(item.AppliesTo),
		}
	}
	for key, name := range raw.ExemptionCategories {
		code := normalizeCode(key)
		cat.Exemptions[code] = ExemptionCategory{Code: code, Name: strings.TrimSpace(name)}
	}
	for key, name := range raw.InvoiceTypes {
		cat.InvoiceTypes[normalizeCode(key)] = strings.TrimSpace(name)
	}
	for key, name := range raw.TransactionTypes {
		cat.TransactionTypes[normalizeCode(key)] = strings.TrimSpace(name)
	}

	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}
