package models

// GiftTier is the rarity bucket of a gift.
type GiftTier string

const (
	TierGold   GiftTier = "gold"
	TierSilver GiftTier = "silver"
	TierBronze GiftTier = "bronze"
)

// Reward is one entry of the points ledger. Balance is the running total
// after this entry.
type Reward struct {
	RewardID  int       `json:"reward_id"`
	UserID    int       `json:"user_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	Balance   int       `json:"balance"`
	CreatedAt Timestamp `json:"created_at"`
}

// RewardBalance is the response of GET /rewards/balance.
type RewardBalance struct {
	Balance     int `json:"balance"`
	TotalEarned int `json:"total_earned"`
}

// Gift is a prize that can be won in the lucky draw.
type Gift struct {
	GiftID      int       `json:"gift_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Tier        GiftTier  `json:"tier"`
	Probability float64   `json:"probability"`
	ImagePath   *string   `json:"image_path,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// GiftCreate is the payload of POST /rewards/gifts.
type GiftCreate struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description,omitempty" validate:"max=500"`
	Tier        GiftTier `json:"tier" validate:"required,oneof=gold silver bronze"`
	Probability float64  `json:"probability" validate:"gte=0,lte=1"`
	ImagePath   string   `json:"image_path,omitempty" validate:"max=500"`
}

// LuckyDrawResult is the response of POST /rewards/lucky-draw.
type LuckyDrawResult struct {
	Gift             Gift `json:"gift"`
	PointsSpent      int  `json:"points_spent"`
	RemainingBalance int  `json:"remaining_balance"`
}
