package redis

import (
	"context"
	"strconv"

	"github.com/civiciq/civiciq/internal/db"
)

// ZAdd inserts a member with the given score.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	cmd := s.b().Zadd().Key(key).ScoreMember().ScoreMember(score, member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRem removes a member.
func (s *Store) ZRem(ctx context.Context, key, member string) error {
	cmd := s.b().Zrem().Key(key).Member(member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRem, Err: err}
	}
	return nil
}

// ZRemRangeByScore removes every member scoring at or below max.
func (s *Store) ZRemRangeByScore(ctx context.Context, key string, max float64) error {
	cmd := s.b().Zremrangebyscore().Key(key).
		Min("-inf").
		Max(strconv.FormatFloat(max, 'f', -1, 64)).
		Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRemRange, Err: err}
	}
	return nil
}

// ZCard returns the member count.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}

// ZRangeWithScores returns members by rank ascending, scores included.
func (s *Store) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]db.ZMember, error) {
	cmd := s.b().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).
		Max(strconv.FormatInt(stop, 10)).
		Withscores().
		Build()
	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	out := make([]db.ZMember, len(scores))
	for i, z := range scores {
		out[i] = db.ZMember{Member: z.Member, Score: z.Score}
	}
	return out, nil
}
