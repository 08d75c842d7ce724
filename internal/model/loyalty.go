package model

import "time"

// LoyaltyProfile 會員累積點數與等級
type LoyaltyProfile struct {
	ActorID   string    `json:"actor_id" db:"actor_id"`
	Points    int64     `json:"points" db:"points"`
	TierID    string    `json:"tier_id" db:"tier_id"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type LoyaltyPolicy struct {
	PointsPerCurrencyUnit int64
	TierUpgradeThreshold  int64
	TierID                string
}

// Accrue 依消費金額累加點數，達門檻時升級；回傳新增點數與是否升級
func (p LoyaltyPolicy) Accrue(profile *LoyaltyProfile, total int64) (int64, bool) {
	if profile == nil || p.PointsPerCurrencyUnit <= 0 || total <= 0 {
		return 0, false
	}
	earned := total / p.PointsPerCurrencyUnit
	profile.Points += earned

	if p.TierID != "" && profile.TierID != p.TierID && p.TierUpgradeThreshold > 0 && profile.Points >= p.TierUpgradeThreshold {
		profile.TierID = p.TierID
		return earned, true
	}
	return earned, false
}
