package contextstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"trade-app/internal/logger"
	"trade-app/internal/types"
)

// contextRecord is the current state of one symbol. Seq counts revisions.
type contextRecord struct {
	Symbol  string
	Seq     uint64
	Context types.SymbolContext
}

// revisionRecord is an immutable snapshot written alongside every update.
type revisionRecord struct {
	ID        string
	Symbol    string
	Seq       uint64
	CreatedAt time.Time
	Context   types.SymbolContext
}

// BadgerStore keeps contexts in an embedded Badger database.
type BadgerStore struct {
	store *badgerhold.Store
	now   func() time.Time
}

// OpenBadger opens (or creates) the database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{store: store, now: time.Now}, nil
}

// upsertAttempts bounds how often a write that lost an optimistic conflict
// is replayed against the newer state.
const upsertAttempts = 3

// Upsert merges upd into the stored context. Concurrent writers to the same
// symbol are serialized by replaying the loser on badger.ErrConflict, so the
// last commit wins.
func (s *BadgerStore) Upsert(ctx context.Context, symbol string, upd types.ContextUpdate) (*types.SymbolContext, error) {
	var err error
	for attempt := 1; attempt <= upsertAttempts; attempt++ {
		var out *types.SymbolContext
		out, err = s.upsertOnce(ctx, symbol, upd)
		if !errors.Is(err, badger.ErrConflict) {
			return out, err
		}
		logger.Debug(ctx, "Context write conflicted, retrying", "symbol", symbol, "attempt", attempt)
	}
	return nil, err
}

func (s *BadgerStore) upsertOnce(ctx context.Context, symbol string, upd types.ContextUpdate) (*types.SymbolContext, error) {
	tx := s.store.Badger().NewTransaction(true)
	defer tx.Discard()

	var cur *types.SymbolContext
	var rec contextRecord
	switch err := s.store.TxGet(tx, symbol, &rec); {
	case err == nil:
		cur = &rec.Context
	case errors.Is(err, badgerhold.ErrNotFound):
		rec = contextRecord{Symbol: symbol}
	default:
		return nil, fmt.Errorf("load context %s: %w", symbol, err)
	}

	next := Merge(cur, symbol, upd, stamp(s.now()))
	if err := Validate(next); err != nil {
		return nil, err
	}

	rec.Seq++
	next.RevisionID = uuid.NewString()
	rec.Context = next
	rev := revisionRecord{
		ID:        next.RevisionID,
		Symbol:    symbol,
		Seq:       rec.Seq,
		CreatedAt: next.UpdatedAt,
		Context:   next,
	}

	if err := s.store.TxUpsert(tx, symbol, &rec); err != nil {
		return nil, fmt.Errorf("write context %s: %w", symbol, err)
	}
	if err := s.store.TxUpsert(tx, rev.ID, &rev); err != nil {
		return nil, fmt.Errorf("write revision %s: %w", rev.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit context %s: %w", symbol, err)
	}

	logger.Debug(ctx, "Context stored", "symbol", symbol, "revision", rev.ID, "seq", rec.Seq)
	out := Clone(next)
	return &out, nil
}

func (s *BadgerStore) Get(ctx context.Context, symbol string) (*types.SymbolContext, error) {
	var rec contextRecord
	if err := s.store.Get(symbol, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: context %s", types.ErrNotFound, symbol)
		}
		return nil, fmt.Errorf("load context %s: %w", symbol, err)
	}
	out := Clone(rec.Context)
	return &out, nil
}

func (s *BadgerStore) List(ctx context.Context, opts types.ListOptions) ([]types.SymbolContext, error) {
	var recs []contextRecord
	if err := s.store.Find(&recs, badgerhold.Where("Symbol").Ne("")); err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}

	out := make([]types.SymbolContext, 0, len(recs))
	for _, rec := range recs {
		c := Clone(rec.Context)
		if opts.ExcludeBinary {
			c = c.WithoutBinary()
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *BadgerStore) History(ctx context.Context, symbol string) ([]types.RevisionInfo, error) {
	revs, err := s.revisions(nil, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]types.RevisionInfo, 0, len(revs))
	for _, r := range revs {
		out = append(out, types.RevisionInfo{ID: r.ID, Symbol: r.Symbol, UpdatedAt: r.CreatedAt})
	}
	return out, nil
}

// revisions returns the snapshots of symbol, newest first.
func (s *BadgerStore) revisions(tx *badger.Txn, symbol string) ([]revisionRecord, error) {
	var revs []revisionRecord
	q := badgerhold.Where("Symbol").Eq(symbol)
	var err error
	if tx != nil {
		err = s.store.TxFind(tx, &revs, q)
	} else {
		err = s.store.Find(&revs, q)
	}
	if err != nil {
		return nil, fmt.Errorf("list revisions %s: %w", symbol, err)
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i].Seq > revs[j].Seq })
	return revs, nil
}

func (s *BadgerStore) GetRevision(ctx context.Context, id string) (*types.SymbolContext, error) {
	var rev revisionRecord
	if err := s.store.Get(id, &rev); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: revision %s", types.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load revision %s: %w", id, err)
	}
	out := Clone(rev.Context)
	return &out, nil
}

func (s *BadgerStore) Delete(ctx context.Context, symbol string) error {
	tx := s.store.Badger().NewTransaction(true)
	defer tx.Discard()

	if err := s.store.TxDelete(tx, symbol, &contextRecord{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: context %s", types.ErrNotFound, symbol)
		}
		return fmt.Errorf("delete context %s: %w", symbol, err)
	}

	revs, err := s.revisions(tx, symbol)
	if err != nil {
		return err
	}
	for _, r := range revs {
		if err := s.store.TxDelete(tx, r.ID, &revisionRecord{}); err != nil {
			return fmt.Errorf("delete revision %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %s: %w", symbol, err)
	}
	logger.Debug(ctx, "Context deleted", "symbol", symbol, "revisions", len(revs))
	return nil
}

// DeleteRevision drops one snapshot. Removing the newest snapshot rolls the
// current record back to the previous one, or deletes it when none remain.
func (s *BadgerStore) DeleteRevision(ctx context.Context, id string) error {
	tx := s.store.Badger().NewTransaction(true)
	defer tx.Discard()

	var rev revisionRecord
	if err := s.store.TxGet(tx, id, &rev); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: revision %s", types.ErrNotFound, id)
		}
		return fmt.Errorf("load revision %s: %w", id, err)
	}

	var rec contextRecord
	err := s.store.TxGet(tx, rev.Symbol, &rec)
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("load context %s: %w", rev.Symbol, err)
	}

	if err == nil && rec.Context.RevisionID == id {
		revs, err := s.revisions(tx, rev.Symbol)
		if err != nil {
			return err
		}
		var prev *revisionRecord
		for i := range revs {
			if revs[i].ID != id {
				prev = &revs[i]
				break
			}
		}
		if prev == nil {
			if err := s.store.TxDelete(tx, rev.Symbol, &contextRecord{}); err != nil {
				return fmt.Errorf("delete context %s: %w", rev.Symbol, err)
			}
		} else {
			rec.Context = prev.Context
			if err := s.store.TxUpsert(tx, rev.Symbol, &rec); err != nil {
				return fmt.Errorf("roll back context %s: %w", rev.Symbol, err)
			}
		}
	}

	if err := s.store.TxDelete(tx, id, &revisionRecord{}); err != nil {
		return fmt.Errorf("delete revision %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revision delete %s: %w", id, err)
	}
	logger.Debug(ctx, "Revision deleted", "symbol", rev.Symbol, "revision", id)
	return nil
}

func (s *BadgerStore) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
