package domain

// LedgerStats summarizes every record currently in the ledger.
type LedgerStats struct {
	TotalTips        int     `json:"totalTips"`
	VerifiedTips     int     `json:"verifiedTips"`
	VerificationRate float64 `json:"verificationRate"` // verified/total, 0 when empty
	AvgConfidence    float64 `json:"avgConfidence"`
	TotalCommission  float64 `json:"totalCommissionEarned"`
}

// UserAggregate is the per-contributor rollup used by the leaderboard and profiles.
// It is recomputed from the ledger on every query.
type UserAggregate struct {
	UserID          string  `json:"userId"`
	TotalTips       int     `json:"totalTips"`
	VerifiedTips    int     `json:"verifiedTips"`
	TotalCommission float64 `json:"totalCommission"`
	AvgConfidence   float64 `json:"avgConfidence"`
	AvgQuality      float64 `json:"avgQuality"`
	SuccessRate     float64 `json:"successRate"` // verified/total
}

// UserProfile es el agregado de un usuario más sus tips recientes (el más nuevo primero).
type UserProfile struct {
	UserAggregate
	RecentTips []TipRecord `json:"recentTips"`
}
