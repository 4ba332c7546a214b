package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoCardless(handler http.Handler) (*GoCardlessService, *httptest.Server) {
	server := httptest.NewServer(handler)
	svc := &GoCardlessService{
		SecretID:  "id",
		SecretKey: "key",
		BaseURL:   server.URL,
		Client:    server.Client(),
	}
	return svc, server
}

func TestGetInstitutionsParsesResponse(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/institutions/", r.URL.Path)
		assert.Equal(t, "GB", r.URL.Query().Get("country"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`[
			{"id":"boi_gb","name":"Bank of Ireland","logo":"https://cdn.example/boi.png"},
			{"id":"hsbc_gb","name":"HSBC","logo":""}
		]`))
	}))
	defer server.Close()

	banks, err := svc.GetInstitutions(context.Background(), "tok", "GB")
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "boi_gb", banks[0].ID)
	assert.Equal(t, "Bank of Ireland", banks[0].Name)
	assert.Equal(t, "GB", banks[0].Country)
}

func TestGetInstitutionsEmptyCountry(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	banks, err := svc.GetInstitutions(context.Background(), "tok", "ZZ")
	require.NoError(t, err)
	assert.Empty(t, banks)
}

func TestGetInstitutionsServerErrorIsProviderError(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"down"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := svc.GetInstitutions(context.Background(), "tok", "GB")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "institutions", pe.Op)
}

func TestCreateRequisition(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/requisitions/", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"req-123","link":"https://bank.example/auth?ref=req-123","status":"CR"}`))
	}))
	defer server.Close()

	id, link, err := svc.CreateRequisition(context.Background(), "tok", "boi_gb", "http://localhost:3000/dashboard", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "req-123", id)
	assert.Equal(t, "https://bank.example/auth?ref=req-123", link)
}

func TestGetRequisitionStatusAndAccounts(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/requisitions/req-123/", r.URL.Path)
		w.Write([]byte(`{"id":"req-123","status":"LN","accounts":["acct-1","acct-2"]}`))
	}))
	defer server.Close()

	status, accounts, err := svc.GetRequisition(context.Background(), "tok", "req-123")
	require.NoError(t, err)
	assert.Equal(t, "LN", status)
	assert.Equal(t, []string{"acct-1", "acct-2"}, accounts)
}

func TestGetTransactionsParsesBooked(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/transactions/", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("date_from"))
		assert.Equal(t, "2024-01-20", r.URL.Query().Get("date_to"))
		w.Write([]byte(`{"transactions":{"booked":[
			{"transactionId":"txn-1","bookingDate":"2024-01-18",
			 "transactionAmount":{"amount":"-15.99","currency":"GBP"},
			 "remittanceInformationUnstructured":"Netflix Subscription"},
			{"transactionId":"txn-2","bookingDate":"2024-01-19",
			 "transactionAmount":{"amount":"3500.00","currency":"GBP"},
			 "creditorName":"","debtorName":"ACME Payroll"}
		]}}`))
	}))
	defer server.Close()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	txs, err := svc.GetTransactions(context.Background(), "tok", "acct-1", from, to)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "txn-1", txs[0].ID)
	assert.Equal(t, "Netflix Subscription", txs[0].Description)
	assert.Equal(t, "-15.99", txs[0].Amount.String())
	assert.Equal(t, "GBP", txs[0].Currency)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), txs[0].Date)

	// Remittance info missing: falls back to counterparty name.
	assert.Equal(t, "ACME Payroll", txs[1].Description)
	assert.True(t, txs[1].Amount.IsPositive())
}

func TestGetTransactionsBadAmountIsProviderError(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":{"booked":[
			{"transactionId":"txn-1","bookingDate":"2024-01-18",
			 "transactionAmount":{"amount":"not-a-number","currency":"GBP"}}
		]}}`))
	}))
	defer server.Close()

	_, err := svc.GetTransactions(context.Background(), "tok", "acct-1", time.Now().AddDate(0, 0, -30), time.Now())
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestGetAccessToken(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/new/", r.URL.Path)
		w.Write([]byte(`{"access":"access-token","access_expires":86400}`))
	}))
	defer server.Close()

	token, err := svc.GetAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-token", token)
}

func TestTimeoutSurfacesAsProviderError(t *testing.T) {
	svc, server := newTestGoCardless(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, _, err := svc.GetRequisition(ctx, "tok", "req-123")
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
}
