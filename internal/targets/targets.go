// Package targets manages daily sales targets. Targets are stored as one
// list per tenant and date, with no index by id, so lookups by id alone scan
// a bounded window of recent dates (today and the lookbackDays-1 days before).
// Older targets can still be reached when their date is given.
package targets

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/kv"
	"kasirinaja/salecore/internal/xid"
)

const DefaultLookbackDays = 7

type SummaryReader interface {
	Get(ctx context.Context, ns keys.Namespace, date string) (domain.DailySalesSummary, error)
}

type Registry struct {
	store        kv.Store
	summaries    SummaryReader
	lookbackDays int
	logger       zerolog.Logger
	now          func() time.Time
}

func New(store kv.Store, summaries SummaryReader, lookbackDays int, logger zerolog.Logger) *Registry {
	if lookbackDays < 1 {
		lookbackDays = DefaultLookbackDays
	}
	return &Registry{
		store:        store,
		summaries:    summaries,
		lookbackDays: lookbackDays,
		logger:       logger.With().Str("component", "targets").Logger(),
		now:          time.Now,
	}
}

func (r *Registry) Create(ctx context.Context, ns keys.Namespace, req domain.TargetCreateRequest) (domain.DailyTarget, error) {
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = keys.DateOf(r.now())
	}
	if _, err := keys.ParseDate(date); err != nil {
		return domain.DailyTarget{}, apperror.ErrInvalidDate
	}

	targetType := strings.ToLower(strings.TrimSpace(req.TargetType))
	if !domain.IsTargetType(targetType) {
		return domain.DailyTarget{}, apperror.NewValidation(apperror.RuleTarget, "target_type", "target type must be one of sales, transactions, items")
	}
	if err := checkValue(req.TargetValue); err != nil {
		return domain.DailyTarget{}, err
	}

	target := domain.DailyTarget{
		ID:          xid.TargetID(),
		TenantID:    ns.Tenant(),
		Date:        date,
		TargetType:  targetType,
		TargetValue: req.TargetValue,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   r.now().UTC(),
	}

	list, err := r.load(ctx, ns, date)
	if err != nil {
		return domain.DailyTarget{}, err
	}
	list = append(list, target)
	if err := r.save(ctx, ns, date, list); err != nil {
		return domain.DailyTarget{}, err
	}

	r.logger.Info().Str("tenant", ns.Tenant()).Str("date", date).Str("target", target.ID).Str("type", targetType).Msg("target created")
	return target, nil
}

// Update patches a target. Without a date the recent window is searched.
// CurrentValue can only be set by hand on items targets; the other types
// read it from the daily summary.
func (r *Registry) Update(ctx context.Context, ns keys.Namespace, id string, req domain.TargetUpdateRequest) (domain.DailyTarget, error) {
	date, list, index, err := r.locate(ctx, ns, id, req.Date)
	if err != nil {
		return domain.DailyTarget{}, err
	}

	target := list[index]
	if req.TargetValue != nil {
		if err := checkValue(*req.TargetValue); err != nil {
			return domain.DailyTarget{}, err
		}
		target.TargetValue = *req.TargetValue
	}
	if req.Description != nil {
		target.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		target.IsActive = *req.IsActive
	}
	if req.CurrentValue != nil {
		if target.TargetType != domain.TargetItems {
			return domain.DailyTarget{}, apperror.NewValidation(apperror.RuleTarget, "current_value", "current value of a %s target is derived from daily sales", target.TargetType)
		}
		if *req.CurrentValue < 0 || math.IsNaN(*req.CurrentValue) || math.IsInf(*req.CurrentValue, 0) {
			return domain.DailyTarget{}, apperror.NewValidation(apperror.RuleTarget, "current_value", "current value must not be negative")
		}
		target.CurrentValue = *req.CurrentValue
	}
	updatedAt := r.now().UTC()
	target.UpdatedAt = &updatedAt

	list[index] = target
	if err := r.save(ctx, ns, date, list); err != nil {
		return domain.DailyTarget{}, err
	}
	return target, nil
}

// Delete removes the target from its date's list. Only the recent window is
// searched; a target outside it is reported as not found.
func (r *Registry) Delete(ctx context.Context, ns keys.Namespace, id string) error {
	date, list, index, err := r.locate(ctx, ns, id, "")
	if err != nil {
		return err
	}

	list = append(list[:index], list[index+1:]...)
	if err := r.save(ctx, ns, date, list); err != nil {
		return err
	}

	r.logger.Info().Str("tenant", ns.Tenant()).Str("date", date).Str("target", id).Msg("target deleted")
	return nil
}

// List returns the date's targets with progress computed on read.
func (r *Registry) List(ctx context.Context, ns keys.Namespace, date string) ([]domain.TargetProgress, error) {
	if _, err := keys.ParseDate(date); err != nil {
		return nil, apperror.ErrInvalidDate
	}

	list, err := r.load(ctx, ns, date)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TargetProgress, 0, len(list))
	if len(list) == 0 {
		return out, nil
	}

	summary, err := r.summaries.Get(ctx, ns, date)
	if err != nil {
		return nil, err
	}
	for _, target := range list {
		out = append(out, Progress(target, summary))
	}
	return out, nil
}

// Progress refreshes CurrentValue from the summary and derives the
// percentage, capped at 100.
func Progress(target domain.DailyTarget, summary domain.DailySalesSummary) domain.TargetProgress {
	switch target.TargetType {
	case domain.TargetSales:
		target.CurrentValue = summary.TotalSales
	case domain.TargetTransactions:
		target.CurrentValue = float64(summary.TotalTransactions)
	}

	progress := domain.TargetProgress{DailyTarget: target}
	if target.TargetValue > 0 {
		progress.ProgressPercent = math.Min(100, target.CurrentValue/target.TargetValue*100)
		progress.Achieved = target.CurrentValue >= target.TargetValue
	}
	return progress
}

func (r *Registry) locate(ctx context.Context, ns keys.Namespace, id string, date string) (string, []domain.DailyTarget, int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil, -1, fmt.Errorf("target: %w", apperror.ErrNotFound)
	}

	dates, err := r.candidateDates(date)
	if err != nil {
		return "", nil, -1, err
	}
	for _, candidate := range dates {
		list, err := r.load(ctx, ns, candidate)
		if err != nil {
			return "", nil, -1, err
		}
		for i, target := range list {
			if target.ID == id {
				return candidate, list, i, nil
			}
		}
	}
	return "", nil, -1, fmt.Errorf("target %s: %w", id, apperror.ErrNotFound)
}

func (r *Registry) candidateDates(date string) ([]string, error) {
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := keys.ParseDate(date); err != nil {
			return nil, apperror.ErrInvalidDate
		}
		return []string{date}, nil
	}

	today := r.now().UTC()
	dates := make([]string, 0, r.lookbackDays)
	for i := 0; i < r.lookbackDays; i++ {
		dates = append(dates, keys.DateOf(today.AddDate(0, 0, -i)))
	}
	return dates, nil
}

func (r *Registry) load(ctx context.Context, ns keys.Namespace, date string) ([]domain.DailyTarget, error) {
	var list []domain.DailyTarget
	if _, err := kv.GetJSON(ctx, r.store, ns.Targets(date), &list); err != nil {
		return nil, apperror.Persistence("read targets", err)
	}
	return list, nil
}

// save drops the key once the last target of a date is gone.
func (r *Registry) save(ctx context.Context, ns keys.Namespace, date string, list []domain.DailyTarget) error {
	if len(list) == 0 {
		return apperror.Persistence("delete targets", r.store.Del(ctx, ns.Targets(date)))
	}
	return apperror.Persistence("write targets", kv.SetJSON(ctx, r.store, ns.Targets(date), list))
}

func checkValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return apperror.NewValidation(apperror.RuleTarget, "target_value", "target value must be greater than 0")
	}
	return nil
}
