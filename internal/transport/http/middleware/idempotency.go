package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyTTL is how long a stored workflow response can be replayed.
const IdempotencyTTL = 24 * time.Hour

// IdempotencyScope identifies one client retry sequence.
type IdempotencyScope struct {
	TenantID string
	UserID   string
	Endpoint string
	Key      string
}

type IdempotencyStore struct {
	db  *pgxpool.Pool
	ttl time.Duration
	now func() time.Time
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttl: IdempotencyTTL, now: time.Now}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyStore) disabled() bool {
	return s == nil || s.db == nil
}

// cutoff is the oldest created_at still eligible for replay.
func (s *IdempotencyStore) cutoff() time.Time {
	return s.now().Add(-s.ttl)
}

// Check returns the stored response for the scope. Expired keys are treated
// as unseen; a live key with a different body is a conflict.
func (s *IdempotencyStore) Check(ctx context.Context, scope IdempotencyScope, requestHash string) (json.RawMessage, bool, error) {
	if s.disabled() {
		return nil, false, nil
	}
	var (
		seenHash string
		response json.RawMessage
	)
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json FROM idempotency_keys
    WHERE tenant_id = $1 AND user_id = $2 AND endpoint = $3 AND key = $4 AND created_at > $5
  `, scope.TenantID, scope.UserID, scope.Endpoint, scope.Key, s.cutoff()).Scan(&seenHash, &response)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case seenHash != requestHash:
		return nil, false, ErrIdempotencyConflict
	}
	return response, true, nil
}

// Save stores the response. An expired row for the same scope is replaced;
// a live row with a different body is left alone and reported as a conflict.
func (s *IdempotencyStore) Save(ctx context.Context, scope IdempotencyScope, requestHash string, response json.RawMessage) error {
	if s.disabled() {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (tenant_id, user_id, endpoint, key, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (tenant_id, user_id, key, endpoint) DO UPDATE
      SET request_hash = EXCLUDED.request_hash, response_json = EXCLUDED.response_json, created_at = now()
      WHERE idempotency_keys.request_hash = EXCLUDED.request_hash OR idempotency_keys.created_at <= $7
  `, scope.TenantID, scope.UserID, scope.Endpoint, scope.Key, requestHash, response, s.cutoff())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Purge deletes keys past their replay window.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	if s.disabled() {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at <= $1`, s.cutoff())
	return tag.RowsAffected(), err
}
