package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/smallbiznis/smartinvoice/internal/authority"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	submissiondomain "github.com/smallbiznis/smartinvoice/internal/submission/domain"
	taxdomain "github.com/smallbiznis/smartinvoice/internal/tax/domain"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_RequiresInitializedDevice(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `{}`))

	_, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind: submissiondomain.KindSales,
		Data: sampleSale(),
	})

	require.ErrorIs(t, err, submissiondomain.ErrDeviceNotInitialized)
	assert.Zero(t, f.hits.Load())
	assert.Empty(t, f.entries(t))
}

func TestSubmit_RejectsUnknownKind(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `{}`))
	f.initialize(t)

	_, err := f.svc.Submit(context.Background(), submissiondomain.Request{Kind: "refunds"})
	assert.ErrorIs(t, err, submissiondomain.ErrInvalidKind)
}

func TestSubmit_SalesSuccess(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotBody map[string]any
	)
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(authority.HeaderAPIKey)
		raw, _ := io.ReadAll(r.Body)
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		_ = dec.Decode(&gotBody)
		jsonHandler(http.StatusOK, `{"resultCd":"000","resultMsg":"It is succeeded"}`)(w, r)
	})
	reg := f.initialize(t)
	ctx := context.Background()

	data := sampleSale()
	result, err := f.svc.Submit(ctx, submissiondomain.Request{Kind: submissiondomain.KindSales, Data: data})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.True(t, strings.HasPrefix(result.Reference, submissiondomain.ReferencePrefix))
	assert.Equal(t, "000", result.Data["resultCd"])

	assert.Equal(t, authority.EndpointSales, gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "NORMAL", gotBody["invoice_type"])
	assert.Equal(t, "SALE", gotBody["transaction_type"])
	assert.Equal(t, json.Number("450.00"), gotBody["totalBeforeTax"])
	assert.Equal(t, json.Number("32.00"), gotBody["totalTax"])
	assert.Equal(t, json.Number("482.00"), gotBody["totalAmount"])
	assert.Equal(t, "INV-001", gotBody["invoice_number"])

	_, mutated := data["invoice_type"]
	assert.False(t, mutated)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.KindSales, entries[0].Kind)
	assert.Equal(t, logdomain.StatusSuccess, entries[0].Status)
	require.NotNil(t, entries[0].Reference)
	assert.Equal(t, result.Reference, *entries[0].Reference)
	assert.Nil(t, entries[0].ErrorMessage)

	active, err := f.device.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, active.ID)
	assert.NotNil(t, active.LastSyncAt)
}

func TestSubmit_HTTPErrorUsesAuthorityMessage(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusBadRequest, `{"message":"Invalid input"}`))
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind: submissiondomain.KindPurchase,
		Data: map[string]any{"supplier": "ACME"},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "Invalid input", result.Error)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.False(t, result.Retryable())

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.KindPurchase, entries[0].Kind)
	assert.Equal(t, logdomain.StatusFailed, entries[0].Status)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Equal(t, "HTTP Error: 400", *entries[0].ErrorMessage)
	assert.Equal(t, "Invalid input", entries[0].ResponsePayload["message"])

	active, err := f.device.Active(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active.LastSyncAt)
}

func TestSubmit_HTTPErrorWithoutMessage(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusServiceUnavailable, `not json`))
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind: submissiondomain.KindStock,
		Data: map[string]any{"sku": "A1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "HTTP Error: 503", result.Error)
	assert.True(t, result.Retryable())
}

func TestSubmit_NonJSONSuccessBodyFails(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `<html>ok</html>`))
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind: submissiondomain.KindSales,
		Data: map[string]any{"invoice_number": "INV-9"},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, invalidJSONMessage, result.Error)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.StatusFailed, entries[0].Status)
}

func TestSubmit_ArraySuccessBodyIsWrapped(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `[{"rcptNo":1}]`))
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind: submissiondomain.KindSales,
		Data: map[string]any{"invoice_number": "INV-11"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	require.Contains(t, result.Data, "data")
	rows, ok := result.Data["data"].([]any)
	require.True(t, ok)
	assert.Len(t, rows, 1)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.StatusSuccess, entries[0].Status)
}

func TestDecodeBody(t *testing.T) {
	cases := []struct {
		name string
		body string
		want map[string]any
		ok   bool
	}{
		{name: "empty", body: "  ", want: map[string]any{}, ok: true},
		{name: "null", body: "null", want: map[string]any{}, ok: true},
		{name: "object", body: `{"resultCd":"000"}`, want: map[string]any{"resultCd": "000"}, ok: true},
		{name: "string", body: `"accepted"`, want: map[string]any{"data": "accepted"}, ok: true},
		{name: "html", body: `<html>ok</html>`, ok: false},
		{name: "trailing data", body: `{} {}`, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := decodeBody([]byte(tc.body))
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestSubmit_EmptySuccessBody(t *testing.T) {
	f := setup(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind: submissiondomain.KindSales,
		Data: map[string]any{"invoice_number": "INV-10"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSubmit_TransportErrorIsLoggedThenReturned(t *testing.T) {
	f := setup(t, dropConnection)
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind: submissiondomain.KindSales,
		Data: map[string]any{"invoice_number": "INV-2"},
	})

	require.ErrorIs(t, err, submissiondomain.ErrTransport)
	require.NotNil(t, result)
	assert.True(t, strings.HasPrefix(result.Reference, submissiondomain.ReferencePrefix))

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.StatusFailed, entries[0].Status)
	assert.Empty(t, entries[0].ResponsePayload)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Equal(t, result.Error, *entries[0].ErrorMessage)
}

func TestSubmit_InvalidCodesAreNotLogged(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `{}`))
	f.initialize(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submissiondomain.Request{
		Kind:        submissiondomain.KindSales,
		Data:        map[string]any{},
		InvoiceType: "BOGUS",
	})
	assert.ErrorIs(t, err, submissiondomain.ErrInvalidInvoiceType)

	_, err = f.svc.Submit(ctx, submissiondomain.Request{
		Kind:            submissiondomain.KindSales,
		Data:            map[string]any{},
		TransactionType: "GIFT",
	})
	assert.ErrorIs(t, err, submissiondomain.ErrInvalidTransactionType)

	_, err = f.svc.Submit(ctx, submissiondomain.Request{
		Kind: submissiondomain.KindSales,
		Data: map[string]any{"items": []any{map[string]any{"name": "X", "quantity": 1}}},
	})
	assert.ErrorIs(t, err, taxdomain.ErrMissingRequiredField)

	assert.Zero(t, f.hits.Load())
	assert.Empty(t, f.entries(t))
}

func TestSubmit_ExplicitCodesAreNormalized(t *testing.T) {
	var gotBody map[string]any
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})
	f.initialize(t)

	_, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind:            submissiondomain.KindSales,
		Data:            map[string]any{},
		InvoiceType:     "copy",
		TransactionType: " credit_note ",
	})
	require.NoError(t, err)
	assert.Equal(t, "COPY", gotBody["invoice_type"])
	assert.Equal(t, "CREDIT_NOTE", gotBody["transaction_type"])
}

func TestSubmit_AutoCalculateDisabledLeavesItems(t *testing.T) {
	var gotBody map[string]any
	cat := catalog.Default()
	cat.AutoCalculateTax = false

	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}, withCatalog(cat))
	f.initialize(t)

	_, err := f.svc.Submit(context.Background(), submissiondomain.Request{Kind: submissiondomain.KindSales, Data: sampleSale()})
	require.NoError(t, err)

	_, hasTotals := gotBody["totalTax"]
	assert.False(t, hasTotals)
	assert.Len(t, gotBody["items"], 2)
}

func TestSubmit_QueueDispatchesPreparedCommand(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	f := setup(t, jsonHandler(http.StatusOK, `{}`), withDispatcher(dispatcher))
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind:  submissiondomain.KindPurchase,
		Data:  sampleSale(),
		Queue: true,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Purchase data queued for processing", result.Message)
	assert.True(t, strings.HasPrefix(result.Reference, submissiondomain.QueuedReferencePrefix))
	assert.Zero(t, f.hits.Load())
	assert.Empty(t, f.entries(t))

	require.Len(t, dispatcher.commands, 1)
	cmd := dispatcher.commands[0]
	assert.NotEmpty(t, cmd.ID)
	assert.Equal(t, result.Reference, cmd.Reference)
	assert.Equal(t, submissiondomain.KindPurchase, cmd.Kind)
	assert.Equal(t, "NORMAL", cmd.InvoiceType)
	assert.Equal(t, "SALE", cmd.TransactionType)
	assert.Equal(t, json.Number("32.00"), cmd.Payload["totalTax"])
}

func TestSubmit_QueueWithoutDispatcher(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `{}`))
	f.initialize(t)

	_, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind:  submissiondomain.KindSales,
		Data:  map[string]any{},
		Queue: true,
	})
	assert.ErrorIs(t, err, submissiondomain.ErrQueueUnavailable)
}

func TestSubmit_QueueDispatchFailure(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("redis down")}
	f := setup(t, jsonHandler(http.StatusOK, `{}`), withDispatcher(dispatcher))
	f.initialize(t)

	_, err := f.svc.Submit(context.Background(), submissiondomain.Request{
		Kind:  submissiondomain.KindSales,
		Data:  map[string]any{},
		Queue: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestSubmit_AttachesSignature(t *testing.T) {
	signer := newTestSigner(t)
	var (
		gotSignature string
		gotBody      []byte
	)
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-ZRA-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}, withSigner(signer))
	f.initialize(t)

	_, err := f.svc.Submit(context.Background(), submissiondomain.Request{Kind: submissiondomain.KindSales, Data: sampleSale()})
	require.NoError(t, err)

	require.NotEmpty(t, gotSignature)
	assert.True(t, signer.Verify(json.RawMessage(gotBody), gotSignature))
}

type failingSigner struct{}

func (failingSigner) Sign(any) (string, error) { return "", errors.New("hsm offline") }

func TestSubmit_SigningFailureSendsUnsigned(t *testing.T) {
	var headers http.Header
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}, withSigner(failingSigner{}))
	f.initialize(t)

	result, err := f.svc.Submit(context.Background(), submissiondomain.Request{Kind: submissiondomain.KindSales, Data: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, headers.Get("X-ZRA-Signature"))
}

func TestSubmit_EachAttemptGetsNewReference(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `{}`))
	f.initialize(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, submissiondomain.Request{Kind: submissiondomain.KindSales, Data: map[string]any{}})
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, submissiondomain.Request{Kind: submissiondomain.KindSales, Data: map[string]any{}})
	require.NoError(t, err)

	assert.NotEqual(t, first.Reference, second.Reference)
	assert.Len(t, f.entries(t), 2)
}

func TestExecute(t *testing.T) {
	var gotPath string
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()
	cmd := submissiondomain.Command{
		Kind:    submissiondomain.KindStock,
		Payload: map[string]any{"invoice_type": "NORMAL", "transaction_type": "SALE"},
	}

	_, err := f.svc.Execute(ctx, cmd)
	require.ErrorIs(t, err, submissiondomain.ErrDeviceNotInitialized)

	f.initialize(t)
	result, err := f.svc.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, authority.EndpointStock, gotPath)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.KindStock, entries[0].Kind)
}

func TestInitializeDevice_Success(t *testing.T) {
	var gotBody map[string]any
	f := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(authority.HeaderAPIKey))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		jsonHandler(http.StatusOK, `{"api_key":"issued-key","device_id":"DEV-9","additional_config":{"mrc":"X1"}}`)(w, r)
	})
	ctx := context.Background()

	result, err := f.svc.InitializeDevice(ctx, submissiondomain.InitRequest{
		TPIN:         "1234567890",
		BranchID:     "001",
		DeviceSerial: "SN-42",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Device initialized successfully", result.Message)

	assert.Equal(t, map[string]any{"tpin": "1234567890", "branchId": "001", "deviceSerialNumber": "SN-42"}, gotBody)

	ok, err := f.svc.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := f.device.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "issued-key", active.Key())
	assert.Equal(t, devicedomain.EnvironmentProduction, active.Environment)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.KindInitialization, entries[0].Kind)
	assert.Equal(t, logdomain.StatusSuccess, entries[0].Status)
	assert.Equal(t, "********", entries[0].ResponsePayload["api_key"])
}

func TestInitializeDevice_RejectedStoresNothing(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusUnauthorized, `{"message":"Unknown taxpayer"}`))
	ctx := context.Background()

	result, err := f.svc.InitializeDevice(ctx, submissiondomain.InitRequest{
		TPIN:         "1234567890",
		BranchID:     "001",
		DeviceSerial: "SN-42",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Unknown taxpayer", result.Error)

	active, err := f.device.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.StatusFailed, entries[0].Status)
}

func TestInitializeDevice_ValidatesBeforeIO(t *testing.T) {
	f := setup(t, jsonHandler(http.StatusOK, `{}`))

	_, err := f.svc.InitializeDevice(context.Background(), submissiondomain.InitRequest{
		TPIN:         "123",
		BranchID:     "001",
		DeviceSerial: "SN-42",
	})
	assert.ErrorIs(t, err, devicedomain.ErrInvalidTaxpayerID)
	assert.Zero(t, f.hits.Load())
	assert.Empty(t, f.entries(t))
}

func TestInitializeDevice_TransportError(t *testing.T) {
	f := setup(t, dropConnection)

	result, err := f.svc.InitializeDevice(context.Background(), submissiondomain.InitRequest{
		TPIN:         "1234567890",
		BranchID:     "001",
		DeviceSerial: "SN-42",
	})
	require.ErrorIs(t, err, submissiondomain.ErrTransport)
	require.NotNil(t, result)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, logdomain.KindInitialization, entries[0].Kind)
	assert.Equal(t, logdomain.StatusFailed, entries[0].Status)
}

func TestHealthCheck(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		f := setup(t, jsonHandler(http.StatusOK, `{}`))
		health, err := f.svc.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, submissiondomain.HealthNotInitialized, health.Status)
		assert.False(t, health.Success)
		assert.Zero(t, f.hits.Load())
	})

	t.Run("client errors still mean connected", func(t *testing.T) {
		f := setup(t, jsonHandler(http.StatusNotFound, `{}`))
		f.initialize(t)
		health, err := f.svc.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, submissiondomain.HealthConnected, health.Status)
		assert.Equal(t, http.StatusNotFound, health.StatusCode)
		assert.True(t, health.Success)
	})

	t.Run("server error", func(t *testing.T) {
		f := setup(t, jsonHandler(http.StatusBadGateway, `{}`))
		f.initialize(t)
		health, err := f.svc.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, submissiondomain.HealthError, health.Status)
		assert.Equal(t, "API connection failed with status 502", health.Message)
	})

	t.Run("unreachable", func(t *testing.T) {
		f := setup(t, dropConnection)
		f.initialize(t)
		health, err := f.svc.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, submissiondomain.HealthError, health.Status)
		assert.NotEmpty(t, health.Error)
	})
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]submissiondomain.Kind{
		"sales":     submissiondomain.KindSales,
		"Purchases": submissiondomain.KindPurchase,
		"stock":     submissiondomain.KindStock,
	} {
		got, err := submissiondomain.ParseKind(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := submissiondomain.ParseKind("refund")
	assert.ErrorIs(t, err, submissiondomain.ErrInvalidKind)
}
