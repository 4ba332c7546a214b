package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finwise-app/banklink-api/models"
)

// GoCardlessService is a thin client for the GoCardless Bank Account Data API.
type GoCardlessService struct {
	SecretID  string
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

func NewGoCardlessService() *GoCardlessService {
	return &GoCardlessService{
		SecretID:  os.Getenv("GOCARDLESS_SECRET_ID"),
		SecretKey: os.Getenv("GOCARDLESS_SECRET_KEY"),
		BaseURL:   "https://bankaccountdata.gocardless.com/api/v2",
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetAccessToken obtains an API access token (valid 24h).
func (s *GoCardlessService) GetAccessToken(ctx context.Context) (string, error) {
	payload := map[string]string{
		"secret_id":  s.SecretID,
		"secret_key": s.SecretKey,
	}

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/token/new/", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", &ProviderError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &ProviderError{Op: "token", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var result struct {
		Access        string `json:"access"`
		AccessExpires int    `json:"access_expires"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ProviderError{Op: "token", Err: err}
	}

	return result.Access, nil
}

// GetInstitutions lists the banks available in a country. An empty list for a
// country with no supported banks is a valid result, not an error.
func (s *GoCardlessService) GetInstitutions(ctx context.Context, accessToken, countryCode string) ([]models.Bank, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", s.BaseURL+"/institutions/?country="+countryCode, nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: "institutions", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{Op: "institutions", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var raw []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Logo string `json:"logo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ProviderError{Op: "institutions", Err: err}
	}

	banks := make([]models.Bank, 0, len(raw))
	for _, inst := range raw {
		banks = append(banks, models.Bank{
			ID:      inst.ID,
			Name:    inst.Name,
			Logo:    inst.Logo,
			Country: countryCode,
		})
	}
	return banks, nil
}

// CreateRequisition opens an authorization session with the provider. The
// returned link must be handed to the user promptly; the session expires on
// the provider's clock.
func (s *GoCardlessService) CreateRequisition(ctx context.Context, accessToken, institutionID, redirectURL, reference string) (string, string, error) {
	payload := map[string]string{
		"redirect":       redirectURL,
		"institution_id": institutionID,
		"reference":      reference,
	}

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/requisitions/", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", "", &ProviderError{Op: "create requisition", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", "", &ProviderError{Op: "create requisition", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var result struct {
		ID   string `json:"id"`
		Link string `json:"link"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", "", &ProviderError{Op: "create requisition", Err: fmt.Errorf("decode error: %v, body: %s", err, string(respBody))}
	}

	return result.ID, result.Link, nil
}

// GetRequisition reads the current status and linked accounts of a
// requisition. Safe to call repeatedly; the provider keeps account order
// stable for a given requisition.
func (s *GoCardlessService) GetRequisition(ctx context.Context, accessToken, requisitionID string) (string, []string, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", s.BaseURL+"/requisitions/"+requisitionID+"/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", nil, &ProviderError{Op: "get requisition", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", nil, &ProviderError{Op: "get requisition", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var result struct {
		Status   string   `json:"status"`
		Accounts []string `json:"accounts"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, &ProviderError{Op: "get requisition", Err: err}
	}

	return result.Status, result.Accounts, nil
}

// ProviderTransaction is a raw booked transaction as returned by the API.
type ProviderTransaction struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	Currency    string
	Date        time.Time
}

// GetTransactions fetches the booked transactions of an account in a date
// window (inclusive, YYYY-MM-DD on the wire).
func (s *GoCardlessService) GetTransactions(ctx context.Context, accessToken, accountID string, dateFrom, dateTo time.Time) ([]ProviderTransaction, error) {
	url := fmt.Sprintf("%s/accounts/%s/transactions/?date_from=%s&date_to=%s",
		s.BaseURL, accountID, dateFrom.Format("2006-01-02"), dateTo.Format("2006-01-02"))

	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: "get transactions", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{Op: "get transactions", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var result struct {
		Transactions struct {
			Booked []struct {
				TransactionID     string `json:"transactionId"`
				BookingDate       string `json:"bookingDate"`
				TransactionAmount struct {
					Amount   string `json:"amount"`
					Currency string `json:"currency"`
				} `json:"transactionAmount"`
				RemittanceInfo string `json:"remittanceInformationUnstructured"`
				CreditorName   string `json:"creditorName"`
				DebtorName     string `json:"debtorName"`
			} `json:"booked"`
		} `json:"transactions"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ProviderError{Op: "get transactions", Err: err}
	}

	txs := make([]ProviderTransaction, 0, len(result.Transactions.Booked))
	for _, tx := range result.Transactions.Booked {
		amount, err := decimal.NewFromString(tx.TransactionAmount.Amount)
		if err != nil {
			return nil, &ProviderError{Op: "get transactions", Err: fmt.Errorf("bad amount %q for %s: %w", tx.TransactionAmount.Amount, tx.TransactionID, err)}
		}

		description := tx.RemittanceInfo
		if description == "" {
			description = tx.CreditorName
		}
		if description == "" {
			description = tx.DebtorName
		}
		if description == "" {
			description = "Transaction"
		}

		date, err := time.Parse("2006-01-02", tx.BookingDate)
		if err != nil {
			return nil, &ProviderError{Op: "get transactions", Err: fmt.Errorf("bad booking date %q for %s: %w", tx.BookingDate, tx.TransactionID, err)}
		}

		txs = append(txs, ProviderTransaction{
			ID:          tx.TransactionID,
			Description: description,
			Amount:      amount,
			Currency:    tx.TransactionAmount.Currency,
			Date:        date,
		})
	}

	return txs, nil
}
