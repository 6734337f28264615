package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"gsrwatch/internal/storage"
)

// Keys of the two persisted records.
const (
	RulesKey   = "gsr_alerts_v1"
	FireLogKey = "gsr_alerts_fired_v1"
)

// Store persists the rule set and fire log in a key-value backend.
type Store struct {
	kv     storage.KV
	logger zerolog.Logger
}

// NewStore wraps kv.
func NewStore(kv storage.KV, logger zerolog.Logger) *Store {
	return &Store{kv: kv, logger: logger.With().Str("component", "alert_store").Logger()}
}

// LoadRules returns the saved rule set, or defaults when it is missing or unreadable.
func (s *Store) LoadRules(ctx context.Context) RuleSet {
	var rules RuleSet
	if !s.read(ctx, RulesKey, &rules) {
		return DefaultRuleSet()
	}
	return rules.normalized()
}

// SaveRules validates and writes rules.
func (s *Store) SaveRules(ctx context.Context, rules RuleSet) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	return s.write(ctx, RulesKey, rules.normalized())
}

// LoadFireLog returns the saved fire log, or an empty one when it is missing or unreadable.
func (s *Store) LoadFireLog(ctx context.Context) FireLog {
	var log FireLog
	if !s.read(ctx, FireLogKey, &log) || log == nil {
		return FireLog{}
	}
	return log
}

// SaveFireLog writes log.
func (s *Store) SaveFireLog(ctx context.Context, log FireLog) error {
	return s.write(ctx, FireLogKey, log)
}

func (s *Store) read(ctx context.Context, key string, dst any) bool {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("alert state unavailable, using defaults")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("alert state corrupt, using defaults")
		return false
	}
	return true
}

func (s *Store) write(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
