package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/smartinvoice/internal/authority"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	inventorydomain "github.com/smallbiznis/smartinvoice/internal/inventory/domain"
	obscontext "github.com/smallbiznis/smartinvoice/internal/observability/context"
	obslogger "github.com/smallbiznis/smartinvoice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/smartinvoice/internal/observability/metrics"
	"github.com/smallbiznis/smartinvoice/internal/signing"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
	taxservice "github.com/smallbiznis/smartinvoice/internal/tax/service"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog/masking"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultSignatureHeader = "X-ZRA-Signature"
	invalidJSONMessage     = "Invalid JSON response"
)

// Transport is the subset of the authority client used by the submitter.
type Transport interface {
	Post(ctx context.Context, req authority.Request) (*authority.Response, error)
	Ping(ctx context.Context) (int, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	Catalog    *catalog.Holder
	Client     *authority.Client
	Device     devicedomain.Service
	Ledger     logdomain.Service
	Aggregator taxdomain.Aggregator
	Signer     signing.Signer              `optional:"true"`
	Dispatcher submissiondomain.Dispatcher `optional:"true"`
	Metrics    *obsmetrics.Metrics         `optional:"true"`
	Stock      inventorydomain.Service     `optional:"true"`
}

type Service struct {
	log             *zap.Logger
	clock           clock.Clock
	catalog         *catalog.Holder
	transport       Transport
	device          devicedomain.Service
	ledger          logdomain.Service
	aggregator      taxdomain.Aggregator
	signer          signing.Signer
	signatureHeader string
	dispatcher      submissiondomain.Dispatcher
	metrics         *obsmetrics.Metrics
	stock           inventorydomain.Service
	logRequests     bool
}

func NewService(p Params) submissiondomain.Service {
	return newService(p, p.Client)
}

func newService(p Params, transport Transport) *Service {
	header := strings.TrimSpace(p.Config.Signing.Header)
	if header == "" {
		header = defaultSignatureHeader
	}
	return &Service{
		log:             p.Log.Named("submission.service"),
		clock:           p.Clock,
		catalog:         p.Catalog,
		transport:       transport,
		device:          p.Device,
		ledger:          p.Ledger,
		aggregator:      p.Aggregator,
		signer:          p.Signer,
		signatureHeader: header,
		dispatcher:      p.Dispatcher,
		metrics:         p.Metrics,
		stock:           p.Stock,
		logRequests:     p.Config.Authority.LogRequests,
	}
}

func (s *Service) IsInitialized(ctx context.Context) (bool, error) {
	return s.device.IsInitialized(ctx)
}

func (s *Service) Submit(ctx context.Context, req submissiondomain.Request) (*submissiondomain.Result, error) {
	if !req.Kind.Valid() {
		return nil, submissiondomain.ErrInvalidKind
	}

	reg, err := s.initializedRegistration(ctx)
	if err != nil {
		return nil, err
	}

	cat := s.catalog.Get()
	invoiceType, transactionType, err := resolveTypes(cat, req.InvoiceType, req.TransactionType)
	if err != nil {
		return nil, err
	}

	payload, err := s.prepare(cat, req.Data, invoiceType, transactionType)
	if err != nil {
		return nil, err
	}

	if req.Kind == submissiondomain.KindSales {
		if err := s.checkStock(ctx, payload); err != nil {
			return nil, err
		}
	}

	if req.Queue {
		return s.enqueue(ctx, submissiondomain.Command{
			Kind:            req.Kind,
			Payload:         payload,
			InvoiceType:     invoiceType,
			TransactionType: transactionType,
		})
	}

	return s.send(ctx, reg, req.Kind, payload)
}

func (s *Service) Execute(ctx context.Context, cmd submissiondomain.Command) (*submissiondomain.Result, error) {
	if !cmd.Kind.Valid() {
		return nil, submissiondomain.ErrInvalidKind
	}

	reg, err := s.initializedRegistration(ctx)
	if err != nil {
		return nil, err
	}

	return s.send(ctx, reg, cmd.Kind, cmd.Payload)
}

func (s *Service) InitializeDevice(ctx context.Context, req submissiondomain.InitRequest) (*submissiondomain.Result, error) {
	tpin := strings.TrimSpace(req.TPIN)
	branchID := strings.TrimSpace(req.BranchID)
	serial := strings.TrimSpace(req.DeviceSerial)
	if err := devicedomain.ValidateInitParams(tpin, branchID, serial); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"tpin":               tpin,
		"branchId":           branchID,
		"deviceSerialNumber": serial,
	}

	result, err := s.exchange(ctx, logdomain.KindInitialization, authority.EndpointInitialize, "", payload)
	if err != nil {
		return result, err
	}
	if !result.Success {
		s.log.Warn("device initialization rejected",
			zap.String("reference", result.Reference),
			zap.String("tpin", devicedomain.MaskTPIN(tpin)),
			zap.Int("status_code", result.StatusCode),
			zap.String("error", result.Error),
		)
		return result, nil
	}

	reg, err := s.device.Register(ctx, devicedomain.RegisterRequest{
		TPIN:         tpin,
		BranchID:     branchID,
		DeviceSerial: serial,
		Response:     result.Data,
	})
	if err != nil {
		return result, fmt.Errorf("store registration: %w", err)
	}

	result.Message = "Device initialized successfully"
	s.log.Info("device initialized",
		zap.String("reference", result.Reference),
		zap.String("registration_id", reg.ID.String()),
		zap.String("tpin", devicedomain.MaskTPIN(tpin)),
		zap.Bool("has_api_key", reg.Key() != ""),
	)
	return result, nil
}

func (s *Service) HealthCheck(ctx context.Context) (submissiondomain.Health, error) {
	ok, err := s.device.IsInitialized(ctx)
	if err != nil {
		return submissiondomain.Health{}, err
	}
	if !ok {
		return submissiondomain.Health{
			Status:  submissiondomain.HealthNotInitialized,
			Message: "Device not initialized",
		}, nil
	}

	status, err := s.transport.Ping(ctx)
	if err != nil {
		return submissiondomain.Health{
			Status:  submissiondomain.HealthError,
			Message: "API connection failed: " + err.Error(),
			Error:   err.Error(),
		}, nil
	}
	if status >= 200 && status < 500 {
		return submissiondomain.Health{
			Success:    true,
			Status:     submissiondomain.HealthConnected,
			Message:    "API connection successful",
			StatusCode: status,
		}, nil
	}
	return submissiondomain.Health{
		Status:     submissiondomain.HealthError,
		Message:    "API connection failed with status " + strconv.Itoa(status),
		StatusCode: status,
	}, nil
}

func (s *Service) initializedRegistration(ctx context.Context) (*devicedomain.Registration, error) {
	reg, err := s.device.Active(ctx)
	if err != nil {
		return nil, err
	}
	if !reg.IsInitialized() {
		return nil, submissiondomain.ErrDeviceNotInitialized
	}
	return reg, nil
}

func resolveTypes(cat catalog.Catalog, invoiceType, transactionType string) (string, string, error) {
	invoiceType = strings.ToUpper(strings.TrimSpace(invoiceType))
	if invoiceType == "" {
		invoiceType = cat.DefaultInvoiceType
	}
	if !cat.HasInvoiceType(invoiceType) {
		return "", "", fmt.Errorf("%w: %s", submissiondomain.ErrInvalidInvoiceType, invoiceType)
	}

	transactionType = strings.ToUpper(strings.TrimSpace(transactionType))
	if transactionType == "" {
		transactionType = cat.DefaultTransactionType
	}
	if !cat.HasTransactionType(transactionType) {
		return "", "", fmt.Errorf("%w: %s", submissiondomain.ErrInvalidTransactionType, transactionType)
	}
	return invoiceType, transactionType, nil
}

// prepare returns a new payload; data is left untouched.
func (s *Service) prepare(cat catalog.Catalog, data map[string]any, invoiceType, transactionType string) (map[string]any, error) {
	payload := make(map[string]any, len(data)+6)
	for k, v := range data {
		payload[k] = v
	}
	payload["invoice_type"] = invoiceType
	payload["transaction_type"] = transactionType

	rawItems, ok := payload["items"]
	if !ok || rawItems == nil || !cat.AutoCalculateTax {
		return payload, nil
	}

	items, err := taxservice.DecodeLineItems(rawItems)
	if err != nil {
		return nil, err
	}
	result, err := s.aggregator.CalculateInvoiceTax(items)
	if err != nil {
		return nil, err
	}
	for k, v := range s.aggregator.FormatForSubmission(result) {
		payload[k] = v
	}
	return payload, nil
}

func (s *Service) enqueue(ctx context.Context, cmd submissiondomain.Command) (*submissiondomain.Result, error) {
	if s.dispatcher == nil {
		return nil, submissiondomain.ErrQueueUnavailable
	}

	cmd.ID = uuid.NewString()
	cmd.Reference = submissiondomain.QueuedReferencePrefix + ulid.Make().String()
	cmd.EnqueuedAt = s.clock.Now()
	if err := s.dispatcher.Dispatch(ctx, cmd); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", cmd.Kind, err)
	}

	obsmetrics.Submission().IncEnqueued(string(cmd.Kind))
	s.log.Info("submission queued",
		zap.String("reference", cmd.Reference),
		zap.String("command_id", cmd.ID),
		zap.String("kind", string(cmd.Kind)),
	)
	return &submissiondomain.Result{
		Success:   true,
		Message:   kindLabel(cmd.Kind) + " data queued for processing",
		Reference: cmd.Reference,
	}, nil
}

func (s *Service) send(ctx context.Context, reg *devicedomain.Registration, kind submissiondomain.Kind, payload map[string]any) (*submissiondomain.Result, error) {
	result, err := s.exchange(ctx, kind.LedgerKind(), kind.Endpoint(), reg.Key(), payload)
	if err != nil {
		return result, err
	}
	if result.Success {
		if err := s.device.TouchSync(ctx, reg.ID); err != nil {
			s.log.Warn("failed to record device sync",
				zap.String("reference", result.Reference),
				zap.Error(err),
			)
		}
		result.Stock = s.moveStock(ctx, kind, payload, result.Reference)
	}
	return result, nil
}

// checkStock rejects a sale whose tracked lines exceed the stock on hand.
func (s *Service) checkStock(ctx context.Context, payload map[string]any) error {
	if s.stock == nil {
		return nil
	}
	items, err := inventorydomain.StockItemsFromPayload(payload["items"])
	if err != nil || len(items) == 0 {
		return err
	}
	return s.stock.CheckAvailability(ctx, items)
}

// moveStock books an accepted sale or purchase against inventory. The
// authority has already accepted the invoice, so failures are only logged.
func (s *Service) moveStock(ctx context.Context, kind submissiondomain.Kind, payload map[string]any, reference string) []inventorydomain.ItemOutcome {
	if s.stock == nil || (kind != submissiondomain.KindSales && kind != submissiondomain.KindPurchase) {
		return nil
	}
	items, err := inventorydomain.StockItemsFromPayload(payload["items"])
	if err == nil && len(items) == 0 {
		return nil
	}

	var outcomes []inventorydomain.ItemOutcome
	if err == nil {
		if kind == submissiondomain.KindSales {
			outcomes, err = s.stock.ProcessSaleItems(ctx, items, reference)
		} else {
			outcomes, err = s.stock.ProcessPurchaseItems(ctx, items, reference)
		}
	}
	if err != nil {
		s.log.Warn("failed to update inventory",
			zap.String("reference", reference),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil
	}
	return outcomes
}

// exchange performs one POST and writes exactly one ledger entry for it.
func (s *Service) exchange(ctx context.Context, kind logdomain.Kind, endpoint, apiKey string, payload map[string]any) (*submissiondomain.Result, error) {
	reference := submissiondomain.ReferencePrefix + ulid.Make().String()
	ctx = obscontext.WithReference(ctx, reference)
	log := obslogger.WithContext(ctx, s.log).With(zap.String("endpoint", endpoint))

	body, err := signing.Canonicalize(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	headers := map[string]string{}
	if s.signer != nil {
		signature, err := s.signer.Sign(json.RawMessage(body))
		if err != nil {
			log.Warn("signing failed, sending unsigned", zap.Error(err))
		} else {
			headers[s.signatureHeader] = signature
		}
	}

	if s.logRequests {
		log.Info("zra api request", zap.Any("data", masking.Sanitize(payload)))
	}

	resp, err := s.transport.Post(ctx, authority.Request{
		Endpoint: endpoint,
		Body:     body,
		APIKey:   apiKey,
		Headers:  headers,
	})
	if err != nil {
		s.record(ctx, log, logdomain.CreateRequest{
			Kind:         kind,
			Reference:    reference,
			Request:      payload,
			Status:       logdomain.StatusFailed,
			ErrorMessage: err.Error(),
		})
		log.Error("zra api error", zap.Error(err))
		return &submissiondomain.Result{
			Error:     err.Error(),
			Reference: reference,
		}, fmt.Errorf("%w: %w", submissiondomain.ErrTransport, err)
	}

	result, ledgerError, responseData := interpret(resp, reference)
	if s.logRequests {
		log.Info("zra api response",
			zap.Int("status_code", resp.StatusCode),
			zap.Any("data", masking.Sanitize(responseData)),
		)
	}

	status := logdomain.StatusFailed
	if result.Success {
		status = logdomain.StatusSuccess
	}
	s.record(ctx, log, logdomain.CreateRequest{
		Kind:         kind,
		Reference:    reference,
		Request:      payload,
		Response:     responseData,
		Status:       status,
		ErrorMessage: ledgerError,
	})
	return result, nil
}

func (s *Service) record(ctx context.Context, log *zap.Logger, req logdomain.CreateRequest) {
	if _, err := s.ledger.CreateLog(ctx, req); err != nil {
		log.Error("failed to write transaction log",
			zap.String("kind", string(req.Kind)),
			zap.String("status", string(req.Status)),
			zap.Error(err),
		)
	}
	s.metrics.RecordSubmission(ctx, string(req.Kind), string(req.Status))
	s.metrics.RecordLedgerEntry(ctx, string(req.Kind), string(req.Status))
}

// interpret classifies a response. It returns the caller-facing result, the
// ledger error message and the decoded body.
func interpret(resp *authority.Response, reference string) (*submissiondomain.Result, string, map[string]any) {
	result := &submissiondomain.Result{
		StatusCode: resp.StatusCode,
		Reference:  reference,
	}

	data, ok := decodeBody(resp.Body)
	httpError := "HTTP Error: " + strconv.Itoa(resp.StatusCode)

	switch {
	case !resp.Success():
		result.Error = httpError
		if message, isString := data["message"].(string); isString && message != "" {
			result.Error = message
		}
		ledgerError := ""
		if resp.StatusCode >= 400 {
			ledgerError = httpError
		}
		return result, ledgerError, data
	case !ok:
		result.Error = invalidJSONMessage
		return result, invalidJSONMessage, nil
	default:
		result.Success = true
		result.Data = data
		return result, "", data
	}
}

// decodeBody treats an empty body or null as an empty object. Any other
// non-object JSON value is wrapped under "data".
func decodeBody(body []byte) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]any{}, true
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	switch v := decoded.(type) {
	case nil:
		return map[string]any{}, true
	case map[string]any:
		return v, true
	default:
		return map[string]any{"data": v}, true
	}
}

func kindLabel(kind submissiondomain.Kind) string {
	switch kind {
	case submissiondomain.KindSales:
		return "Sales"
	case submissiondomain.KindPurchase:
		return "Purchase"
	case submissiondomain.KindStock:
		return "Stock"
	default:
		return "Transaction"
	}
}
