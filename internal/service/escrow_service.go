package service

import (
	"context"
	"fmt"

	"wallet-escrow-engine/internal/core/domain"
	"wallet-escrow-engine/internal/core/ports"
	"wallet-escrow-engine/pkg/apperror"
	"wallet-escrow-engine/pkg/metrics"

	"github.com/rs/zerolog"
)

// EscrowService implements ports.EscrowEngine. Money always moves through
// the ledger, never directly; state writes use guarded transitions so a
// deal can only advance once no matter how many concurrent callers race.
// Transitions that pair a state write with a ledger call compensate the
// side that succeeded when the other fails.
type EscrowService struct {
	deals  ports.DealStore
	ledger ports.Ledger
	events ports.EventPublisher
	log    zerolog.Logger
}

// NewEscrowService creates a new EscrowService. events may be nil.
func NewEscrowService(deals ports.DealStore, ledger ports.Ledger, events ports.EventPublisher, log zerolog.Logger) *EscrowService {
	return &EscrowService{
		deals:  deals,
		ledger: ledger,
		events: events,
		log:    log,
	}
}

// CreateDeal opens a PENDING deal between a buyer and a seller. No funds
// move until the buyer pays into escrow.
func (s *EscrowService) CreateDeal(ctx context.Context, buyerID, sellerID int64, amount int64, description string) (*domain.Deal, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if buyerID == sellerID {
		return nil, apperror.ErrSelfTrade()
	}

	deal := domain.NewDeal(buyerID, sellerID, amount, description)
	if err := s.deals.Create(ctx, nil, deal); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create deal: %w", err))
	}

	s.publishDeal(ctx, deal, "created")
	s.log.Info().
		Str("deal_id", deal.ID).
		Int64("buyer_id", buyerID).
		Int64("seller_id", sellerID).
		Int64("amount", amount).
		Msg("deal created")
	return deal, nil
}

// Accept moves the deal to ACCEPTED. Only the seller may accept.
func (s *EscrowService) Accept(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if actorID != deal.SellerID {
		return nil, apperror.ErrUnauthorized()
	}
	if !deal.CanTransition(domain.DealStatusAccepted) {
		return nil, apperror.ErrInvalidState(string(deal.Status))
	}

	return s.transition(ctx, dealID, domain.DealStatusPending, domain.DealStatusAccepted, "accepted")
}

// Pay takes the deal amount from the buyer's wallet into escrow and moves
// the deal to FUNDED. If the state write loses a race after the debit, the
// debit is reversed.
func (s *EscrowService) Pay(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if actorID != deal.BuyerID {
		return nil, apperror.ErrUnauthorized()
	}
	if !deal.CanTransition(domain.DealStatusFunded) {
		return nil, apperror.ErrInvalidState(string(deal.Status))
	}

	if _, err := s.ledger.Debit(ctx, deal.BuyerID, deal.Amount, "Escrow funding for deal "+dealID); err != nil {
		return nil, err
	}

	ok, err := s.deals.MarkFunded(ctx, nil, dealID)
	if err == nil && !ok {
		err = apperror.ErrInvalidState(string(s.currentStatus(ctx, dealID)))
	}
	if err != nil {
		s.compensate(ctx, deal.BuyerID, deal.Amount, "Reversal: escrow funding for deal "+dealID, "escrow_pay")
		if _, isApp := err.(*apperror.AppError); isApp {
			return nil, err
		}
		return nil, apperror.ErrStorage(fmt.Errorf("mark funded: %w", err))
	}

	metrics.RecordEscrowTransition(string(domain.DealStatusAccepted), string(domain.DealStatusFunded))
	funded, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	s.publishDeal(ctx, funded, "funded")
	s.log.Info().
		Str("deal_id", dealID).
		Int64("buyer_id", deal.BuyerID).
		Int64("amount", deal.Amount).
		Msg("deal funded, amount held in escrow")
	return funded, nil
}

// Release pays the held amount to the seller and completes the deal. Only
// the buyer may release. The state is claimed before the payout so the
// same deal can never pay out twice; if the payout then fails, the claim
// is rolled back.
func (s *EscrowService) Release(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if actorID != deal.BuyerID {
		return nil, apperror.ErrUnauthorized()
	}
	if !deal.CanTransition(domain.DealStatusCompleted) {
		return nil, apperror.ErrInvalidState(string(deal.Status))
	}

	ok, err := s.deals.UpdateStatus(ctx, nil, dealID, domain.DealStatusFunded, domain.DealStatusCompleted)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("claim release: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(s.currentStatus(ctx, dealID)))
	}

	if _, err := s.ledger.Credit(ctx, deal.SellerID, deal.Amount, "Escrow release for deal "+dealID); err != nil {
		s.revertClaim(ctx, dealID, domain.DealStatusCompleted, domain.DealStatusFunded, "escrow_release")
		return nil, err
	}

	metrics.RecordEscrowTransition(string(domain.DealStatusFunded), string(domain.DealStatusCompleted))
	completed, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	s.publishDeal(ctx, completed, "released")
	s.log.Info().
		Str("deal_id", dealID).
		Int64("seller_id", deal.SellerID).
		Int64("amount", deal.Amount).
		Msg("escrow released to seller")
	return completed, nil
}

// Dispute freezes the deal for admin review. Either participant may
// dispute an ACCEPTED or FUNDED deal; held funds stay held.
func (s *EscrowService) Dispute(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(actorID) {
		return nil, apperror.ErrUnauthorized()
	}
	if !deal.CanTransition(domain.DealStatusDisputed) {
		return nil, apperror.ErrInvalidState(string(deal.Status))
	}

	return s.transition(ctx, dealID, deal.Status, domain.DealStatusDisputed, "disputed")
}

// Cancel closes a deal the seller never accepted. Either participant may
// cancel while PENDING; nothing was funded, so no money moves.
func (s *EscrowService) Cancel(ctx context.Context, dealID string, actorID int64) (*domain.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(actorID) {
		return nil, apperror.ErrUnauthorized()
	}
	if !deal.CanTransition(domain.DealStatusCancelled) {
		return nil, apperror.ErrInvalidState(string(deal.Status))
	}

	return s.transition(ctx, dealID, domain.DealStatusPending, domain.DealStatusCancelled, "cancelled")
}

// ResolveDispute is the admin exit from DISPUTED. For a funded deal the
// held amount is routed per the resolution; a deal disputed before funding
// closes without moving money. The RESOLVED claim happens first so the
// held amount can only be routed once.
func (s *EscrowService) ResolveDispute(ctx context.Context, dealID string, resolution domain.DealResolution) (*domain.Deal, error) {
	switch resolution {
	case domain.ResolutionRefundBuyer, domain.ResolutionPaySeller, domain.ResolutionSplit:
	default:
		return nil, apperror.Validation("Unknown resolution")
	}

	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.CanTransition(domain.DealStatusResolved) {
		return nil, apperror.ErrInvalidState(string(deal.Status))
	}

	ok, err := s.deals.UpdateStatus(ctx, nil, dealID, domain.DealStatusDisputed, domain.DealStatusResolved)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("claim resolution: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(s.currentStatus(ctx, dealID)))
	}

	if deal.FundedAt != nil {
		if err := s.routeHeldFunds(ctx, deal, resolution); err != nil {
			s.revertClaim(ctx, dealID, domain.DealStatusResolved, domain.DealStatusDisputed, "escrow_resolve")
			return nil, err
		}
	}

	metrics.RecordEscrowTransition(string(domain.DealStatusDisputed), string(domain.DealStatusResolved))
	resolved, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	s.publishDeal(ctx, resolved, "resolved")
	s.log.Info().
		Str("deal_id", dealID).
		Str("resolution", string(resolution)).
		Bool("was_funded", deal.FundedAt != nil).
		Msg("dispute resolved")
	return resolved, nil
}

// GetDeal returns the deal by id.
func (s *EscrowService) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	return s.getDeal(ctx, dealID)
}

// ListDeals returns the user's deals as buyer or seller, newest first.
func (s *EscrowService) ListDeals(ctx context.Context, userID int64) ([]domain.Deal, error) {
	deals, err := s.deals.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list deals: %w", err))
	}
	return deals, nil
}

// routeHeldFunds credits the held amount per the resolution. A SPLIT gives
// the seller half, rounding the odd minor unit to the buyer. If the second
// leg of a split fails, the first leg is reversed before reporting the
// error.
func (s *EscrowService) routeHeldFunds(ctx context.Context, deal *domain.Deal, resolution domain.DealResolution) error {
	note := "Dispute resolution for deal " + deal.ID

	switch resolution {
	case domain.ResolutionRefundBuyer:
		_, err := s.ledger.Credit(ctx, deal.BuyerID, deal.Amount, note)
		return err

	case domain.ResolutionPaySeller:
		_, err := s.ledger.Credit(ctx, deal.SellerID, deal.Amount, note)
		return err

	case domain.ResolutionSplit:
		sellerShare := deal.Amount / 2
		buyerShare := deal.Amount - sellerShare
		if _, err := s.ledger.Credit(ctx, deal.SellerID, sellerShare, note); err != nil {
			return err
		}
		if _, err := s.ledger.Credit(ctx, deal.BuyerID, buyerShare, note); err != nil {
			s.compensate(ctx, deal.SellerID, sellerShare, "Reversal: "+note, "escrow_resolve")
			return err
		}
		return nil
	}
	return nil
}

// transition applies a guarded status write and returns the updated deal.
func (s *EscrowService) transition(ctx context.Context, dealID string, from, to domain.DealStatus, event string) (*domain.Deal, error) {
	ok, err := s.deals.UpdateStatus(ctx, nil, dealID, from, to)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("update deal status: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(s.currentStatus(ctx, dealID)))
	}

	metrics.RecordEscrowTransition(string(from), string(to))
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	s.publishDeal(ctx, deal, event)
	s.log.Info().
		Str("deal_id", dealID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("deal transitioned")
	return deal, nil
}

// revertClaim rolls a claimed status back after the paired ledger call
// failed. A failed revert is logged loudly: the deal is stuck until an
// operator intervenes.
func (s *EscrowService) revertClaim(ctx context.Context, dealID string, from, to domain.DealStatus, operation string) {
	ok, err := s.deals.UpdateStatus(ctx, nil, dealID, from, to)
	if err != nil || !ok {
		s.log.Error().Err(err).
			Str("deal_id", dealID).
			Str("stuck_in", string(from)).
			Msg("failed to revert claimed deal status")
		return
	}
	metrics.RecordCompensation(operation)
	s.log.Warn().
		Str("deal_id", dealID).
		Str("reverted_to", string(to)).
		Msg("ledger call failed, deal status reverted")
}

// compensate reverses a ledger debit or credit that ended up one-sided.
func (s *EscrowService) compensate(ctx context.Context, userID int64, amount int64, description, operation string) {
	if _, err := s.ledger.Credit(ctx, userID, amount, description); err != nil {
		s.log.Error().Err(err).
			Int64("user_id", userID).
			Int64("amount", amount).
			Msg("escrow compensation failed, funds held")
		return
	}
	metrics.RecordCompensation(operation)
}

func (s *EscrowService) publishDeal(ctx context.Context, d *domain.Deal, event string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDeal(ctx, d, event); err != nil {
		s.log.Warn().Err(err).Str("deal_id", d.ID).Msg("failed to publish deal event")
	}
}

func (s *EscrowService) getDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	deal, err := s.deals.Get(ctx, dealID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get deal: %w", err))
	}
	if deal == nil {
		return nil, apperror.ErrNotFound("deal")
	}
	return deal, nil
}

// currentStatus re-reads the deal after a lost guarded write so the error
// can name the state the deal actually is in.
func (s *EscrowService) currentStatus(ctx context.Context, dealID string) domain.DealStatus {
	deal, err := s.deals.Get(ctx, dealID)
	if err != nil || deal == nil {
		return "UNKNOWN"
	}
	return deal.Status
}
