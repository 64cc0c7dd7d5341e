// Package txstore persists committed transactions. Each record is written
// once under its own key and its id is appended to a per-tenant, per-day
// index list. The index append is a whole-list read-modify-write, so two
// commits racing on the same day can drop one id from the index.
package txstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/kv"
)

type Store struct {
	kv     kv.Store
	logger zerolog.Logger
}

func New(store kv.Store, logger zerolog.Logger) *Store {
	return &Store{
		kv:     store,
		logger: logger.With().Str("component", "txstore").Logger(),
	}
}

// Commit writes the record and then indexes it under the UTC date of its
// timestamp. Either write failing is a *apperror.PersistenceError.
func (s *Store) Commit(ctx context.Context, ns keys.Namespace, tx domain.Transaction) error {
	if strings.TrimSpace(tx.ID) == "" {
		return fmt.Errorf("commit transaction: empty id")
	}

	if err := kv.SetJSON(ctx, s.kv, ns.Transaction(tx.ID), tx); err != nil {
		return apperror.Persistence("write transaction", err)
	}

	date := keys.DateOf(tx.Timestamp)
	ids, err := s.index(ctx, ns, date)
	if err != nil {
		return apperror.Persistence("read transaction index", err)
	}
	if slices.Contains(ids, tx.ID) {
		return nil
	}
	ids = append(ids, tx.ID)
	if err := kv.SetJSON(ctx, s.kv, ns.TransactionIndex(date), ids); err != nil {
		return apperror.Persistence("write transaction index", err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, ns keys.Namespace, id string) (domain.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Transaction{}, apperror.ErrNotFound
	}

	var tx domain.Transaction
	found, err := kv.GetJSON(ctx, s.kv, ns.Transaction(id), &tx)
	if err != nil {
		return domain.Transaction{}, apperror.Persistence("read transaction", err)
	}
	if !found {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, apperror.ErrNotFound)
	}
	return tx, nil
}

// ListForDate dereferences the day's index in commit order. Ids whose
// record is gone are skipped, so Count can be lower than the index length.
func (s *Store) ListForDate(ctx context.Context, ns keys.Namespace, date string) (domain.TransactionList, error) {
	list := domain.TransactionList{Date: date, Transactions: []domain.Transaction{}}

	ids, err := s.index(ctx, ns, date)
	if err != nil {
		return domain.TransactionList{}, apperror.Persistence("read transaction index", err)
	}

	for _, id := range ids {
		var tx domain.Transaction
		found, err := kv.GetJSON(ctx, s.kv, ns.Transaction(id), &tx)
		if err != nil {
			return domain.TransactionList{}, apperror.Persistence("read transaction", err)
		}
		if !found {
			s.logger.Warn().Str("tenant", ns.Tenant()).Str("date", date).Str("transaction", id).Msg("indexed transaction missing, skipped")
			continue
		}
		list.Transactions = append(list.Transactions, tx)
	}
	list.Count = len(list.Transactions)
	return list, nil
}

func (s *Store) index(ctx context.Context, ns keys.Namespace, date string) ([]string, error) {
	var ids []string
	if _, err := kv.GetJSON(ctx, s.kv, ns.TransactionIndex(date), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
