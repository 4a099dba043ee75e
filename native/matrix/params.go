package matrix

import (
	"errors"
	"fmt"
)

// BpsDenominator is the fixed denominator for all basis-point math.
const BpsDenominator = 10000

// EarningsCapMultiplier bounds lifetime credited earnings relative to the
// user's cumulative investment.
const EarningsCapMultiplier = 4

// WithdrawTier maps a minimum direct-sponsor count to a payout rate.
type WithdrawTier struct {
	MinDirects uint64
	RateBps    uint64
}

// UpgradeThreshold maps a minimum team size to an automatic package tier.
type UpgradeThreshold struct {
	MinTeamSize uint64
	Tier        PackageTier
}

// RankThreshold defines the qualification bar for a leader rank.
type RankThreshold struct {
	Rank        LeaderRank
	MinTeamSize uint64
	MinDirects  uint64
}

// PlanParams holds every compensation constant. A single validated instance
// is fixed at engine construction so tests can exercise alternate plans.
type PlanParams struct {
	// SponsorBps is the direct sponsor commission share.
	SponsorBps uint64
	// LevelBps pays sponsor-chain ancestors above the sponsor, index 0 being
	// the sponsor's own sponsor. The walk stops at the table length or the
	// matrix root, whichever comes first.
	LevelBps []uint64
	// UplineBps is split equally across up to UplineDepth sponsor-chain
	// ancestors starting with the sponsor. Shares for missing ancestors
	// accrue to the leftover pool.
	UplineBps   uint64
	UplineDepth uint64
	// LeaderBps and GlobalHelpBps accrue to the respective pools.
	LeaderBps     uint64
	GlobalHelpBps uint64

	// WithdrawTiers must be sorted ascending by MinDirects with a tier at 0.
	WithdrawTiers []WithdrawTier
	// UpgradeThresholds must be sorted ascending by MinTeamSize.
	UpgradeThresholds []UpgradeThreshold
	// RankThresholds must be ordered from highest rank to lowest.
	RankThresholds []RankThreshold

	// Distribution gates, in seconds. Owner-forced runs bypass them.
	GlobalHelpIntervalSecs  uint64
	LeaderBonusIntervalSecs uint64
}

// DefaultPlanParams returns the production compensation plan.
func DefaultPlanParams() PlanParams {
	return PlanParams{
		SponsorBps:    4000,
		LevelBps:      []uint64{300, 100, 100, 100, 100, 100, 50, 50, 50, 50},
		UplineBps:     1000,
		UplineDepth:   30,
		LeaderBps:     1000,
		GlobalHelpBps: 3000,
		WithdrawTiers: []WithdrawTier{
			{MinDirects: 0, RateBps: 7000},
			{MinDirects: 5, RateBps: 7500},
			{MinDirects: 20, RateBps: 8000},
		},
		UpgradeThresholds: []UpgradeThreshold{
			{MinTeamSize: 128, Tier: Tier50},
			{MinTeamSize: 256, Tier: Tier100},
			{MinTeamSize: 2048, Tier: Tier200},
		},
		RankThresholds: []RankThreshold{
			{Rank: RankSilverStar, MinTeamSize: 500, MinDirects: 0},
			{Rank: RankShiningStar, MinTeamSize: 250, MinDirects: 10},
		},
		GlobalHelpIntervalSecs:  7 * 24 * 60 * 60,
		LeaderBonusIntervalSecs: 14 * 24 * 60 * 60,
	}
}

// levelTotalBps sums the level bonus table.
func (p PlanParams) levelTotalBps() uint64 {
	total := uint64(0)
	for _, bps := range p.LevelBps {
		total += bps
	}
	return total
}

// Validate ensures the plan allocates at most 100% and the lookup tables are
// well formed.
func (p PlanParams) Validate() error {
	total := p.SponsorBps + p.levelTotalBps() + p.UplineBps + p.LeaderBps + p.GlobalHelpBps
	if total > BpsDenominator {
		return fmt.Errorf("plan allocates %d bps, must not exceed %d", total, BpsDenominator)
	}
	if p.UplineBps > 0 && p.UplineDepth == 0 {
		return errors.New("upline depth must be positive when upline share is set")
	}
	if len(p.WithdrawTiers) == 0 || p.WithdrawTiers[0].MinDirects != 0 {
		return errors.New("withdraw tiers must start at zero directs")
	}
	for i, tier := range p.WithdrawTiers {
		if tier.RateBps > BpsDenominator {
			return fmt.Errorf("withdraw tier %d exceeds 100%%", i)
		}
		if i > 0 && tier.MinDirects <= p.WithdrawTiers[i-1].MinDirects {
			return errors.New("withdraw tiers must be sorted by min directs")
		}
	}
	for i := 1; i < len(p.UpgradeThresholds); i++ {
		if p.UpgradeThresholds[i].MinTeamSize <= p.UpgradeThresholds[i-1].MinTeamSize {
			return errors.New("upgrade thresholds must be sorted by team size")
		}
	}
	return nil
}

// WithdrawRateBps resolves the payout percentage for a direct-sponsor count.
func (p PlanParams) WithdrawRateBps(directs uint64) uint64 {
	rate := uint64(0)
	for _, tier := range p.WithdrawTiers {
		if directs >= tier.MinDirects {
			rate = tier.RateBps
		}
	}
	return rate
}

// UpgradeTier returns the highest tier unlocked by the given team size.
func (p PlanParams) UpgradeTier(teamSize uint64, current PackageTier) PackageTier {
	tier := current
	for _, threshold := range p.UpgradeThresholds {
		if teamSize >= threshold.MinTeamSize && threshold.Tier > tier {
			tier = threshold.Tier
		}
	}
	return tier
}

// RankFor classifies a user given team size and direct-sponsor count.
func (p PlanParams) RankFor(teamSize, directs uint64) LeaderRank {
	for _, threshold := range p.RankThresholds {
		if teamSize >= threshold.MinTeamSize && directs >= threshold.MinDirects {
			return threshold.Rank
		}
	}
	return RankNone
}
