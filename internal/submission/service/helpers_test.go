package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/smartinvoice/internal/authority"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	devicerepository "github.com/smallbiznis/smartinvoice/internal/device/repository"
	deviceservice "github.com/smallbiznis/smartinvoice/internal/device/service"
	inventorydomain "github.com/smallbiznis/smartinvoice/internal/inventory/domain"
	"github.com/smallbiznis/smartinvoice/internal/signing"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	taxservice "github.com/smallbiznis/smartinvoice/internal/tax/service"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	logrepository "github.com/smallbiznis/smartinvoice/internal/transactionlog/repository"
	logservice "github.com/smallbiznis/smartinvoice/internal/transactionlog/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *Service
	device devicedomain.Service
	ledger logdomain.Service
	db     *gorm.DB
	server *httptest.Server
	hits   *atomic.Int32
}

type option func(*Params)

func withSigner(signer signing.Signer) option {
	return func(p *Params) { p.Signer = signer }
}

func withDispatcher(d submissiondomain.Dispatcher) option {
	return func(p *Params) { p.Dispatcher = d }
}

func withStock(stock inventorydomain.Service) option {
	return func(p *Params) { p.Stock = stock }
}

func withCatalog(cat catalog.Catalog) option {
	return func(p *Params) { p.Catalog = catalog.NewStaticHolder(cat) }
}

func setup(t *testing.T, handler http.HandlerFunc, opts ...option) *fixture {
	t.Helper()

	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&devicedomain.Registration{}, &logdomain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{
		Authority: config.AuthorityConfig{BaseURL: server.URL, Timeout: 2 * time.Second, LogRequests: true},
		Signing:   config.SigningConfig{Header: "X-ZRA-Signature"},
	}

	device := deviceservice.NewService(deviceservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Config: cfg, Repo: devicerepository.Provide(),
	})
	ledger := logservice.NewService(logservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: logrepository.Provide(),
	})

	client, err := authority.New(cfg.Authority, log, nil)
	require.NoError(t, err)

	p := Params{
		Log:     log,
		Config:  cfg,
		Clock:   fake,
		Catalog: catalog.NewStaticHolder(catalog.Default()),
		Client:  client,
		Device:  device,
		Ledger:  ledger,
	}
	for _, opt := range opts {
		opt(&p)
	}
	p.Aggregator = taxservice.NewAggregator(taxservice.Params{Catalog: p.Catalog})

	return &fixture{
		svc:    NewService(p).(*Service),
		device: device,
		ledger: ledger,
		db:     db,
		server: server,
		hits:   hits,
	}
}

func (f *fixture) initialize(t *testing.T) *devicedomain.Registration {
	t.Helper()
	reg, err := f.device.Register(context.Background(), devicedomain.RegisterRequest{
		TPIN:         "1234567890",
		BranchID:     "001",
		DeviceSerial: "SN-0001",
		Response:     map[string]any{"api_key": "secret-key", "device_id": "DEV-1"},
	})
	require.NoError(t, err)
	return reg
}

func (f *fixture) entries(t *testing.T) []logdomain.Entry {
	t.Helper()
	entries, err := f.ledger.Recent(context.Background(), 100)
	require.NoError(t, err)
	return entries
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func dropConnection(w http.ResponseWriter, _ *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		_ = conn.Close()
	}
}

type recordingDispatcher struct {
	mu       sync.Mutex
	commands []submissiondomain.Command
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, cmd submissiondomain.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.commands = append(d.commands, cmd)
	return nil
}

func newTestSigner(t *testing.T) *signing.FileSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "smartinvoice-submitter"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	signer, err := signing.NewFileSigner(key, cert)
	require.NoError(t, err)
	return signer
}

func sampleSale() map[string]any {
	return map[string]any{
		"invoice_number": "INV-001",
		"customer_tpin":  "9876543210",
		"items": []any{
			map[string]any{"name": "Laptop", "unitPrice": "100", "quantity": "2", "taxCategory": "VAT"},
			map[string]any{"name": "Bread", "unitPrice": 50, "quantity": 5, "taxCategory": "ZERO_RATED"},
		},
	}
}
