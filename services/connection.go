package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/finwise-app/banklink-api/models"
)

// bankProvider is the slice of the aggregation API the orchestrator needs.
type bankProvider interface {
	GetInstitutions(ctx context.Context, accessToken, countryCode string) ([]models.Bank, error)
	CreateRequisition(ctx context.Context, accessToken, institutionID, redirectURL, reference string) (string, string, error)
	GetRequisition(ctx context.Context, accessToken, requisitionID string) (string, []string, error)
}

type connectionStore interface {
	SaveRequisition(ctx context.Context, req *models.Requisition) error
	GetRequisition(ctx context.Context, requisitionID, userID string) (*models.Requisition, error)
	UpdateRequisitionStatus(ctx context.Context, requisitionID, status string) error
	FinalizeLink(ctx context.Context, requisitionID, userID, accountID, bankName string) (*models.AccountLink, error)
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ConnectionService drives the bank-link authorization flow: bank discovery,
// requisition creation, and callback resolution. Starting authorization is an
// effect that returns a link for the caller to present; completing it is an
// explicit input carrying the requisition reference. No UI lifecycle leaks in
// here.
type ConnectionService struct {
	provider    bankProvider
	store       connectionStore
	tokens      tokenSource
	redirectURL string

	mu         sync.Mutex
	states     map[string]string      // user id -> connection state
	knownBanks map[string]models.Bank // bank id -> bank, from prior ListBanks calls
}

func NewConnectionService(provider bankProvider, store connectionStore, tokens tokenSource, redirectURL string) *ConnectionService {
	return &ConnectionService{
		provider:    provider,
		store:       store,
		tokens:      tokens,
		redirectURL: redirectURL,
		states:      make(map[string]string),
		knownBanks:  make(map[string]models.Bank),
	}
}

// State reports the authorization state for a user. Users we have never seen
// are Idle.
func (s *ConnectionService) State(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[userID]; ok {
		return state
	}
	return models.ConnectionIdle
}

// ListBanks returns the banks available in a country, in provider order. An
// empty list is a valid outcome. Provider failure leaves state untouched.
func (s *ConnectionService) ListBanks(ctx context.Context, countryCode string) ([]models.Bank, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	banks, err := s.provider.GetInstitutions(ctx, token, countryCode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, bank := range banks {
		s.knownBanks[bank.ID] = bank
	}
	s.mu.Unlock()

	return banks, nil
}

// Connect creates a requisition for a bank and moves the user to Connecting.
// The returned link must be presented to the user promptly; the provider's
// authorization session has its own expiry. An unknown bank id fails before
// any provider I/O.
func (s *ConnectionService) Connect(ctx context.Context, userID, bankID string) (*models.Requisition, error) {
	s.mu.Lock()
	bank, known := s.knownBanks[bankID]
	if !known {
		s.mu.Unlock()
		return nil, ErrInvalidBank
	}
	if s.states[userID] == models.ConnectionConnecting {
		s.mu.Unlock()
		return nil, fmt.Errorf("connection already in progress, reset it first")
	}
	s.mu.Unlock()

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	// The reference travels to the provider; mint an opaque one instead of
	// exposing the internal user id.
	reference := uuid.NewString()
	requisitionID, link, err := s.provider.CreateRequisition(ctx, token, bankID, s.redirectURL, reference)
	if err != nil {
		// Provider failure must not mutate state.
		return nil, err
	}

	req := &models.Requisition{
		ID:            requisitionID,
		UserID:        userID,
		InstitutionID: bankID,
		Link:          link,
		Status:        models.RequisitionCreated,
	}
	if err := s.store.SaveRequisition(ctx, req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.states[userID] = models.ConnectionConnecting
	s.mu.Unlock()

	log.Printf("🏦 Requisition %s created for user %s (bank: %s)", requisitionID, userID, bank.Name)
	return req, nil
}

// Resolve consumes the callback reference and reads the requisition's current
// status from the provider. It is an idempotent read: the external return
// callback is not delivered exactly once, so calling this repeatedly for the
// same requisition is safe and a terminal row is never rewritten.
//
// On LN with at least one account, the first-listed account becomes the
// active link (provider order is stable per requisition); the full account
// set stays on the returned requisition for later selection. RJ is a valid
// terminal outcome, not an error.
func (s *ConnectionService) Resolve(ctx context.Context, userID, requisitionID string) (*models.Requisition, *models.AccountLink, error) {
	req, err := s.store.GetRequisition(ctx, requisitionID, userID)
	if err != nil {
		return nil, nil, err
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	status, accounts, err := s.provider.GetRequisition(ctx, token, requisitionID)
	if err != nil {
		return nil, nil, err
	}
	req.Accounts = accounts

	if req.Terminal() {
		// Already resolved by an earlier callback delivery.
		return req, nil, nil
	}

	switch status {
	case models.RequisitionLinked:
		if len(accounts) == 0 {
			// Provider says linked but reports no accounts; stay in
			// Connecting until it does.
			return req, nil, nil
		}

		link, err := s.store.FinalizeLink(ctx, requisitionID, userID, accounts[0], s.bankName(req.InstitutionID))
		if err != nil {
			return nil, nil, err
		}

		req.Status = models.RequisitionLinked
		s.setState(userID, models.ConnectionLinked)
		log.Printf("✅ Requisition %s linked, active account %s (%d total)", requisitionID, accounts[0], len(accounts))
		return req, link, nil

	case models.RequisitionRejected:
		if err := s.store.UpdateRequisitionStatus(ctx, requisitionID, models.RequisitionRejected); err != nil {
			return nil, nil, err
		}
		req.Status = models.RequisitionRejected
		s.setState(userID, models.ConnectionRejected)
		log.Printf("🚫 Requisition %s rejected", requisitionID)
		return req, nil, nil

	case models.RequisitionExpired:
		if err := s.store.UpdateRequisitionStatus(ctx, requisitionID, models.RequisitionExpired); err != nil {
			return nil, nil, err
		}
		req.Status = models.RequisitionExpired
		s.setState(userID, models.ConnectionRejected)
		log.Printf("⏰ Requisition %s expired", requisitionID)
		return req, nil, nil

	default:
		// Still pending on the provider side.
		req.Status = status
		return req, nil, nil
	}
}

// Reset returns a Connecting user to Idle. This is the only automatic-free
// path out of Connecting; a rejected or expired requisition needs a brand-new
// Connect, not a retry of the old one.
func (s *ConnectionService) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[userID] == models.ConnectionConnecting {
		s.states[userID] = models.ConnectionIdle
	}
}

func (s *ConnectionService) setState(userID, state string) {
	s.mu.Lock()
	s.states[userID] = state
	s.mu.Unlock()
}

func (s *ConnectionService) bankName(bankID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bank, ok := s.knownBanks[bankID]; ok {
		return bank.Name
	}
	return bankID
}
