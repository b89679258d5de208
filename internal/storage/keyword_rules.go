package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fintalk/iecat/internal/common"
	"github.com/fintalk/iecat/internal/model"
	"github.com/fintalk/iecat/internal/pattern"
)

const ruleColumns = `id, keyword, transaction_type, category, usage_count, source, created_at, last_used_at`

const upsertRuleSQL = `
	INSERT INTO keyword_rules (keyword, transaction_type, category, usage_count, source, created_at, last_used_at)
	VALUES (?, ?, ?, 1, ?, ?, ?)
	ON CONFLICT (keyword, transaction_type) DO UPDATE SET
		usage_count = keyword_rules.usage_count + 1,
		last_used_at = excluded.last_used_at,
		category = CASE WHEN excluded.category <> '' THEN excluded.category ELSE keyword_rules.category END
`

// Lookup returns the rule whose keyword equals the normalized label. When
// the keyword is registered under several types the most recently
// reinforced one wins.
func (s *RuleStore) Lookup(ctx context.Context, label string) (*model.KeywordRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	keyword := pattern.Normalize(label)
	if err := validateString(keyword, "label"); err != nil {
		return nil, err
	}

	var rule model.KeywordRule
	err := s.db.GetContext(ctx, &rule, s.q(`
		SELECT `+ruleColumns+`
		FROM keyword_rules
		WHERE keyword = ?
		ORDER BY last_used_at DESC, usage_count DESC, id DESC
		LIMIT 1
	`), keyword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: keyword %q", common.ErrNotFound, keyword)
	}
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to look up keyword: %w", err))
	}

	return &rule, nil
}

// Upsert records a learning event. A keyword already known under any type
// is reinforced in place; an unknown keyword is inserted with usage 1. The
// insert and the same-type reinforcement share one ON CONFLICT statement so
// concurrent learners of the same pair never create duplicates.
func (s *RuleStore) Upsert(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	keyword := pattern.Normalize(label)
	if err := validateString(keyword, "label"); err != nil {
		return nil, err
	}
	if err := validateType(txType); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var existing model.KeywordRule
	err = tx.GetContext(ctx, &existing, s.q(`
		SELECT `+ruleColumns+`
		FROM keyword_rules
		WHERE keyword = ?
		ORDER BY CASE WHEN transaction_type = ? THEN 0 ELSE 1 END, last_used_at DESC, usage_count DESC
		LIMIT 1
	`), keyword, txType)

	var rule *model.KeywordRule
	switch {
	case err == nil && existing.Type != txType:
		s.logger.Warn("Keyword registered under another type, reinforcing existing rule",
			"keyword", keyword,
			"existing_type", existing.Type,
			"learned_type", txType)
		if err := s.reinforceTx(ctx, tx, existing.ID); err != nil {
			return nil, err
		}
		rule, err = s.getByIDTx(ctx, tx, existing.ID)
	case err == nil || errors.Is(err, sql.ErrNoRows):
		now := s.now()
		if _, err := tx.ExecContext(ctx, s.q(upsertRuleSQL),
			keyword, txType, category, model.SourceLearned, now, now); err != nil {
			return nil, unavailable(fmt.Errorf("failed to upsert keyword: %w", err))
		}
		rule, err = s.getByKeyTx(ctx, tx, keyword, txType)
	default:
		return nil, unavailable(fmt.Errorf("failed to read keyword: %w", err))
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable(fmt.Errorf("failed to commit keyword: %w", err))
	}

	return rule, nil
}

// Put registers a keyword under an explicit type. Unlike Upsert it never
// redirects to a rule of another type, which makes it the disambiguation
// path for operators.
func (s *RuleStore) Put(ctx context.Context, label string, txType model.TransactionType, category string) (*model.KeywordRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	keyword := pattern.Normalize(label)
	if err := validateString(keyword, "label"); err != nil {
		return nil, err
	}
	if err := validateType(txType); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	if _, err := tx.ExecContext(ctx, s.q(upsertRuleSQL),
		keyword, txType, category, model.SourceManual, now, now); err != nil {
		return nil, unavailable(fmt.Errorf("failed to save keyword: %w", err))
	}

	rule, err := s.getByKeyTx(ctx, tx, keyword, txType)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(fmt.Errorf("failed to commit keyword: %w", err))
	}
	return rule, nil
}

// Reinforce increments usage for a rule that produced an accepted match.
func (s *RuleStore) Reinforce(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.reinforceTx(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(fmt.Errorf("failed to commit reinforcement: %w", err))
	}
	return nil
}

func (s *RuleStore) reinforceTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE keyword_rules
		SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ?
	`), s.now(), id)
	if err != nil {
		return unavailable(fmt.Errorf("failed to reinforce keyword: %w", err))
	}
	return requireAffected(res, id)
}

// ListByType returns every rule of a type, most used first.
func (s *RuleStore) ListByType(ctx context.Context, txType model.TransactionType) ([]model.KeywordRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateType(txType); err != nil {
		return nil, err
	}

	rules := []model.KeywordRule{}
	if err := s.db.SelectContext(ctx, &rules, s.q(`
		SELECT `+ruleColumns+`
		FROM keyword_rules
		WHERE transaction_type = ?
		ORDER BY usage_count DESC, keyword
	`), txType); err != nil {
		return nil, unavailable(fmt.Errorf("failed to list keywords: %w", err))
	}
	return rules, nil
}

// ListAll returns every rule grouped by type.
func (s *RuleStore) ListAll(ctx context.Context) ([]model.KeywordRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rules := []model.KeywordRule{}
	if err := s.db.SelectContext(ctx, &rules, `
		SELECT `+ruleColumns+`
		FROM keyword_rules
		ORDER BY transaction_type, usage_count DESC, keyword
	`); err != nil {
		return nil, unavailable(fmt.Errorf("failed to list keywords: %w", err))
	}
	return rules, nil
}

// Delete removes a rule. Only administrative cleanup deletes rules.
func (s *RuleStore) Delete(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM keyword_rules WHERE id = ?`), id)
	if err != nil {
		return unavailable(fmt.Errorf("failed to delete keyword: %w", err))
	}
	return requireAffected(res, id)
}

// Seed inserts seed rules that are not present yet and reports how many
// were added. Existing rules keep their counters.
func (s *RuleStore) Seed(ctx context.Context, seeds []model.SeedRule) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	insert := s.q(`
		INSERT INTO keyword_rules (keyword, transaction_type, category, usage_count, source, created_at, last_used_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (keyword, transaction_type) DO NOTHING
	`)

	added := 0
	for _, seed := range seeds {
		keyword := pattern.Normalize(seed.Keyword)
		if keyword == "" || !seed.Type.Valid() {
			return 0, fmt.Errorf("%w: seed %q/%q", ErrInvalidType, seed.Keyword, seed.Type)
		}
		res, err := tx.ExecContext(ctx, insert, keyword, seed.Type, seed.Category, model.SourceSeed, now, now)
		if err != nil {
			return 0, unavailable(fmt.Errorf("failed to seed keyword %q: %w", keyword, err))
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, unavailable(fmt.Errorf("failed to commit seeds: %w", err))
	}
	return added, nil
}

func (s *RuleStore) getByKeyTx(ctx context.Context, tx *sqlx.Tx, keyword string, txType model.TransactionType) (*model.KeywordRule, error) {
	var rule model.KeywordRule
	if err := tx.GetContext(ctx, &rule, s.q(`
		SELECT `+ruleColumns+`
		FROM keyword_rules
		WHERE keyword = ? AND transaction_type = ?
	`), keyword, txType); err != nil {
		return nil, unavailable(fmt.Errorf("failed to read keyword: %w", err))
	}
	return &rule, nil
}

func (s *RuleStore) getByIDTx(ctx context.Context, tx *sqlx.Tx, id int64) (*model.KeywordRule, error) {
	var rule model.KeywordRule
	if err := tx.GetContext(ctx, &rule, s.q(`SELECT `+ruleColumns+` FROM keyword_rules WHERE id = ?`), id); err != nil {
		return nil, unavailable(fmt.Errorf("failed to read keyword: %w", err))
	}
	return &rule, nil
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: rule %d", common.ErrNotFound, id)
	}
	return nil
}
