// Package session keeps clarification sessions in Redis: the original
// report, the questions issued for it and the answers collected so far.
// A resubmission re-scores the stored report together with the answers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/diagnosis/engine"
)

const (
	DefaultTTL       = 30 * time.Minute
	DefaultKeyPrefix = "diagnosis:session:"
)

// Session is one clarification round trip.
type Session struct {
	ID          string                      `json:"id"`
	Request     engine.Request              `json:"request"`
	PrimaryID   string                      `json:"primaryId"`
	Reason      engine.Reason               `json:"reason"`
	Questions   []engine.ClarifyingQuestion `json:"questions"`
	Answers     []engine.Answer             `json:"answers,omitempty"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
	Resubmitted int                         `json:"resubmitted"`
}

// Store persists sessions as JSON values with a sliding TTL.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewStore(client redis.Cmdable, ttl time.Duration, prefix string) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, ttl: ttl, prefix: prefix, now: time.Now}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Open records the questions issued for req. It returns nil when the result
// needed no clarification.
func (s *Store) Open(ctx context.Context, req engine.Request, res *engine.Result) (*Session, error) {
	if !res.Confidence.NeedsClarification {
		return nil, nil
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		Request:   req,
		PrimaryID: res.Confidence.Primary.ConditionID,
		Reason:    res.Confidence.Reason,
		Questions: res.Confidence.ClarifyingQuestions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session. Missing or expired sessions yield SESSION_NOT_FOUND.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewRedisError("get session", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, apperrors.NewRedisError("decode session", err)
	}
	return &sess, nil
}

// Answer appends answers to a session and returns the request to re-score:
// the stored report with every answer collected so far attached.
func (s *Store) Answer(ctx context.Context, id string, answers []engine.Answer) (*Session, engine.Request, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, engine.Request{}, err
	}

	sess.Answers = append(sess.Answers, answers...)
	sess.Resubmitted++
	sess.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, sess); err != nil {
		return nil, engine.Request{}, err
	}

	req := sess.Request
	req.Answers = append([]engine.Answer(nil), sess.Answers...)
	return sess, req, nil
}

// Close removes a session once the caller is done with it.
func (s *Store) Close(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return apperrors.NewRedisError("delete session", err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return apperrors.NewRedisError("encode session", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return apperrors.NewRedisError("set session", err)
	}
	return nil
}
