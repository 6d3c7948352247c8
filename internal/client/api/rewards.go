package api

import (
	"context"
	"net/url"

	"github.com/atinyakov/kongtze/internal/models"
)

// DefaultHistoryLimit is the number of ledger entries History fetches when
// no positive limit is given.
const DefaultHistoryLimit = 50

// RewardService covers /rewards.
type RewardService struct{ d Doer }

func (s *RewardService) Balance(ctx context.Context, token string) (*models.RewardBalance, error) {
	var out models.RewardBalance
	if err := s.d.Get(ctx, "/rewards/balance", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the newest ledger entries, at most limit of them.
func (s *RewardService) History(ctx context.Context, limit int, token string) ([]models.Reward, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	q := url.Values{"limit": {itoa(limit)}}
	var out []models.Reward
	if err := s.d.Get(ctx, withQuery("/rewards/history", q), token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Gifts lists the prize catalogue. An empty tier lists every tier.
func (s *RewardService) Gifts(ctx context.Context, tier models.GiftTier, token string) ([]models.Gift, error) {
	q := url.Values{}
	if tier != "" {
		q.Set("tier", string(tier))
	}
	var out []models.Gift
	if err := s.d.Get(ctx, withQuery("/rewards/gifts", q), token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RewardService) CreateGift(ctx context.Context, in models.GiftCreate, token string) (*models.Gift, error) {
	var out models.Gift
	if err := s.d.Post(ctx, "/rewards/gifts", in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RewardService) DeleteGift(ctx context.Context, id int, token string) error {
	return s.d.Delete(ctx, "/rewards/gifts/"+itoa(id), token, nil)
}

// LuckyDraw spends points on a random gift. The draw itself is server side.
func (s *RewardService) LuckyDraw(ctx context.Context, token string) (*models.LuckyDrawResult, error) {
	var out models.LuckyDrawResult
	if err := s.d.Post(ctx, "/rewards/lucky-draw", struct{}{}, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
