package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/limpabem/promotion-service/internal/domain"
)

// EvaluateInput holds a cart to price against the active promotions.
// Subtotal is trusted as supplied by the caller; the engine never recomputes
// it from the items.
type EvaluateInput struct {
	ClientID string
	Items    []domain.CartItem
	Subtotal float64
}

// EvaluationResult is the outcome of pricing a cart.
type EvaluationResult struct {
	// Discount is the best discount across all eligible promotions. It is
	// not clamped to the subtotal; keeping the final price non-negative is
	// the caller's responsibility.
	Discount float64 `json:"discount"`

	// Promotion is the winner, nil exactly when Discount is zero.
	Promotion *domain.Promotion `json:"promotion,omitempty"`

	// Message is a display string naming the winner and the formatted
	// amount, empty when there is no winner.
	Message string `json:"message,omitempty"`

	// Opportunities lists near-miss promotions sorted by distance to
	// unlock, closest first.
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// Evaluate determines the single best-applicable discount for the cart plus
// the upsell opportunities for promotions the cart almost unlocks.
//
// The active-promotion snapshot is fetched per call; nothing is cached on
// the service. A store failure aborts the evaluation rather than degrading
// to a zero-discount result, so a backend outage can neither shortchange an
// eligible client nor hand out a capped promotion.
func (s *PromotionService) Evaluate(ctx context.Context, input *EvaluateInput) (*EvaluationResult, error) {
	promotions, err := s.repo.ListActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}

	usageCounts, names, err := s.fetchEvaluationContext(ctx, input.ClientID, promotions)
	if err != nil {
		return nil, err
	}

	var (
		best   float64
		winner *domain.Promotion
	)
	type scored struct {
		opp  domain.Opportunity
		dist float64
	}
	var nearMisses []scored

	for i := range promotions {
		p := &promotions[i]

		// A maxed-out promotion is invisible: no discount, no nudge.
		if p.UsesPerClient > 0 && usageCounts[p.ID] >= p.UsesPerClient {
			continue
		}

		discount := 0.0
		if domain.IsEligible(p, input.Items) {
			discount = domain.CalculateDiscount(p, input.Items, input.Subtotal)
		}

		// Strict greater-than keeps the first-seen winner on ties.
		if discount > best {
			best = discount
			winner = p
		}

		if discount == 0 {
			if opp, dist, ok := domain.FindOpportunity(p, input.Items, input.Subtotal, names); ok {
				nearMisses = append(nearMisses, scored{opp: opp, dist: dist})
			}
		}
	}

	sort.SliceStable(nearMisses, func(i, j int) bool {
		return nearMisses[i].dist < nearMisses[j].dist
	})

	opportunities := make([]domain.Opportunity, len(nearMisses))
	for i, nm := range nearMisses {
		opportunities[i] = nm.opp
	}

	result := &EvaluationResult{
		Discount:      best,
		Opportunities: opportunities,
	}
	if winner != nil {
		result.Promotion = winner
		result.Message = fmt.Sprintf("Promoção %q aplicada: %s de desconto",
			winner.Name, domain.FormatBRL(best))
	}

	s.logger.DebugContext(ctx, "cart evaluated",
		slog.Int("active_promotions", len(promotions)),
		slog.Float64("discount", best),
		slog.Int("opportunities", len(opportunities)),
	)

	return result, nil
}

// fetchEvaluationContext loads the client's usage counts for capped
// promotions and the display names for restricted services. The two reads
// are independent and run concurrently; either failing aborts the
// evaluation.
func (s *PromotionService) fetchEvaluationContext(
	ctx context.Context,
	clientID string,
	promotions []domain.Promotion,
) (map[string]int, map[string]string, error) {
	var cappedIDs []string
	serviceIDSet := make(map[string]struct{})
	for _, p := range promotions {
		if p.UsesPerClient > 0 {
			cappedIDs = append(cappedIDs, p.ID)
		}
		for _, id := range p.EligibleServiceIDs {
			serviceIDSet[id] = struct{}{}
		}
	}
	serviceIDs := make([]string, 0, len(serviceIDSet))
	for id := range serviceIDSet {
		serviceIDs = append(serviceIDs, id)
	}

	usageCounts := map[string]int{}
	names := map[string]string{}

	g, gctx := errgroup.WithContext(ctx)

	if len(cappedIDs) > 0 && clientID != "" {
		g.Go(func() error {
			counts, err := s.repo.CountUsage(gctx, clientID, cappedIDs)
			if err != nil {
				return fmt.Errorf("count promotion usage: %w", err)
			}
			usageCounts = counts
			return nil
		})
	}

	if len(serviceIDs) > 0 {
		g.Go(func() error {
			resolved, err := s.catalog.ResolveServiceNames(gctx, serviceIDs)
			if err != nil {
				return fmt.Errorf("resolve service names: %w", err)
			}
			names = resolved
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return usageCounts, names, nil
}

// RegisterUsageInput identifies one redemption to record.
type RegisterUsageInput struct {
	PromotionID    string
	OrderID        string
	ClientID       string
	DiscountAmount float64
}

// RegisterUsageResult reports the outcome of a registration attempt.
type RegisterUsageResult struct {
	Inserted      bool `json:"inserted"`
	AlreadyExists bool `json:"already_exists,omitempty"`
}

// RegisterUsage records that a client redeemed a promotion on an order, at
// most once per (promotion, order, client) triple. Incomplete input and
// non-positive amounts are reported through the result, not as errors; only
// store failures surface as errors.
//
// The existence check and the insert are not wrapped in a transaction, so
// two concurrent attempts for the same triple can both pass the check. The
// unique index behind RecordUsage settles that race.
func (s *PromotionService) RegisterUsage(ctx context.Context, input *RegisterUsageInput) (*RegisterUsageResult, error) {
	amount := math.Abs(input.DiscountAmount)
	if input.PromotionID == "" || input.OrderID == "" || input.ClientID == "" || amount <= 0 {
		return &RegisterUsageResult{Inserted: false}, nil
	}

	exists, err := s.repo.UsageExists(ctx, input.PromotionID, input.OrderID, input.ClientID)
	if err != nil {
		return nil, fmt.Errorf("check usage exists: %w", err)
	}
	if exists {
		return &RegisterUsageResult{Inserted: false, AlreadyExists: true}, nil
	}

	usage := &domain.UsageRecord{
		ID:             uuid.New().String(),
		PromotionID:    input.PromotionID,
		ClientID:       input.ClientID,
		OrderID:        input.OrderID,
		DiscountAmount: amount,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.RecordUsage(ctx, usage); err != nil {
		return nil, fmt.Errorf("record promotion usage: %w", err)
	}

	if err := s.producer.PublishUsageRecorded(ctx, usage); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.usage_recorded event",
			slog.String("promotion_id", usage.PromotionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion usage recorded",
		slog.String("promotion_id", usage.PromotionID),
		slog.String("client_id", usage.ClientID),
		slog.String("order_id", usage.OrderID),
		slog.Float64("discount_amount", usage.DiscountAmount),
	)

	return &RegisterUsageResult{Inserted: true}, nil
}
