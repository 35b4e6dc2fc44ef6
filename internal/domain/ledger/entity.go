package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// VIPLevel is the user's membership tier.
type VIPLevel int

const (
	VIPLevelNone VIPLevel = 0
	VIPLevelVIP  VIPLevel = 1
	VIPLevelSVIP VIPLevel = 2
)

func (l VIPLevel) String() string {
	switch l {
	case VIPLevelVIP:
		return "vip"
	case VIPLevelSVIP:
		return "svip"
	default:
		return "none"
	}
}

// ParseVIPLevel maps the catalog tier name to a level.
func ParseVIPLevel(s string) (VIPLevel, bool) {
	switch s {
	case "vip":
		return VIPLevelVIP, true
	case "svip":
		return VIPLevelSVIP, true
	default:
		return VIPLevelNone, false
	}
}

// Monthly translate-character allowance granted per tier. Renewal resets the
// allowance to the tier constant, it does not accumulate.
const (
	VIPMonthlyCharacters  = 200
	SVIPMonthlyCharacters = 800
)

// Daily match quota per tier, restored by the external daily reset.
const (
	DailyMatchQuotaFree = 10
	DailyMatchQuotaVIP  = 50
	DailyMatchQuotaSVIP = 100
)

// MonthlyCharacters returns the translate allowance for a tier.
func (l VIPLevel) MonthlyCharacters() int {
	switch l {
	case VIPLevelVIP:
		return VIPMonthlyCharacters
	case VIPLevelSVIP:
		return SVIPMonthlyCharacters
	default:
		return 0
	}
}

// DailyMatchQuota returns the daily quota for a tier.
func (l VIPLevel) DailyMatchQuota() int {
	switch l {
	case VIPLevelVIP:
		return DailyMatchQuotaVIP
	case VIPLevelSVIP:
		return DailyMatchQuotaSVIP
	default:
		return DailyMatchQuotaFree
	}
}

// Balance is the authoritative per-user balance record.
type Balance struct {
	UserID             uuid.UUID    `db:"user_id" json:"user_id"`
	GoldCoin           int64        `db:"gold_coin" json:"gold_coin"`
	TranslationCredits int64        `db:"translation_credits" json:"translation_credits"`
	VIPLevel           VIPLevel     `db:"vip_level" json:"vip_level"`
	VIPExpiration      sql.NullTime `db:"vip_expiration" json:"vip_expiration,omitempty"`
	VIPCharacter       int          `db:"vip_character" json:"vip_character"`
	LifetimeSpend      int64        `db:"lifetime_spend" json:"lifetime_spend"`
	DailyMatchQuota    int          `db:"daily_match_quota" json:"daily_match_quota"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// IsVIPActive reports whether the membership is currently in force.
func (b *Balance) IsVIPActive(now time.Time) bool {
	return b.VIPLevel != VIPLevelNone && b.VIPExpiration.Valid && b.VIPExpiration.Time.After(now)
}

// VIPChange extends a membership by whole months.
type VIPChange struct {
	Level  VIPLevel `json:"level"`
	Months int      `json:"months"`
}

// Delta is the single mutation unit applied to a balance. All fields are
// optional; negative coin/credit values are spends, negative MatchQuota
// consumes quota.
type Delta struct {
	GoldCoin      int64
	Credits       int64
	LifetimeSpend int64
	MatchQuota    int
	VIP           *VIPChange
}

// Apply mutates the balance in place, enforcing the non-negative invariants.
// It is the one place the invariant lives; the repository calls it under a row
// lock and fakes call it directly in tests.
func (b *Balance) Apply(d Delta, now time.Time) error {
	newCoin := b.GoldCoin + d.GoldCoin
	if newCoin < 0 {
		return ErrInsufficientBalance
	}
	newCredits := b.TranslationCredits + d.Credits
	if newCredits < 0 {
		return ErrInsufficientBalance
	}
	newQuota := b.DailyMatchQuota + d.MatchQuota
	if newQuota < 0 {
		return ErrQuotaExhausted
	}

	b.GoldCoin = newCoin
	b.TranslationCredits = newCredits
	b.DailyMatchQuota = newQuota
	if d.LifetimeSpend > 0 {
		b.LifetimeSpend += d.LifetimeSpend
	}

	if d.VIP != nil {
		// Renewal extends from the later of now and the current expiry, so
		// renewing early keeps the remaining days.
		base := now
		if b.VIPExpiration.Valid && b.VIPExpiration.Time.After(now) {
			base = b.VIPExpiration.Time
		}
		b.VIPLevel = d.VIP.Level
		b.VIPExpiration = sql.NullTime{Time: base.AddDate(0, d.VIP.Months, 0), Valid: true}
		b.VIPCharacter = d.VIP.Level.MonthlyCharacters()
	}

	b.UpdatedAt = now
	return nil
}
