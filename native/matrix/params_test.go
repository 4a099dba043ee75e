package matrix

import "testing"

func TestDefaultPlanValidates(t *testing.T) {
	if err := DefaultPlanParams().Validate(); err != nil {
		t.Fatalf("default plan: %v", err)
	}
}

func TestPlanValidateRejectsOverAllocation(t *testing.T) {
	params := DefaultPlanParams()
	params.GlobalHelpBps = 4000
	if err := params.Validate(); err == nil {
		t.Fatal("expected over-allocated plan to fail")
	}

	params = DefaultPlanParams()
	params.UplineDepth = 0
	if err := params.Validate(); err == nil {
		t.Fatal("expected zero upline depth to fail")
	}

	params = DefaultPlanParams()
	params.WithdrawTiers = []WithdrawTier{{MinDirects: 1, RateBps: 7000}}
	if err := params.Validate(); err == nil {
		t.Fatal("expected missing base withdraw tier to fail")
	}
}

func TestWithdrawRateBps(t *testing.T) {
	params := DefaultPlanParams()
	cases := []struct {
		directs uint64
		want    uint64
	}{
		{0, 7000},
		{4, 7000},
		{5, 7500},
		{19, 7500},
		{20, 8000},
		{100, 8000},
	}
	for _, tc := range cases {
		if got := params.WithdrawRateBps(tc.directs); got != tc.want {
			t.Fatalf("rate at %d directs: got %d want %d", tc.directs, got, tc.want)
		}
	}
}

func TestUpgradeTier(t *testing.T) {
	params := DefaultPlanParams()
	cases := []struct {
		teamSize uint64
		current  PackageTier
		want     PackageTier
	}{
		{127, Tier30, Tier30},
		{128, Tier30, Tier50},
		{255, Tier30, Tier50},
		{256, Tier30, Tier100},
		{2048, Tier30, Tier200},
		{0, Tier200, Tier200},
		{128, Tier100, Tier100},
	}
	for _, tc := range cases {
		if got := params.UpgradeTier(tc.teamSize, tc.current); got != tc.want {
			t.Fatalf("upgrade at team %d from %v: got %v want %v", tc.teamSize, tc.current, got, tc.want)
		}
	}
}

func TestRankFor(t *testing.T) {
	params := DefaultPlanParams()
	cases := []struct {
		teamSize uint64
		directs  uint64
		want     LeaderRank
	}{
		{0, 0, RankNone},
		{249, 10, RankNone},
		{250, 9, RankNone},
		{250, 10, RankShiningStar},
		{499, 10, RankShiningStar},
		{500, 0, RankSilverStar},
		{500, 10, RankSilverStar},
	}
	for _, tc := range cases {
		if got := params.RankFor(tc.teamSize, tc.directs); got != tc.want {
			t.Fatalf("rank at team %d directs %d: got %v want %v", tc.teamSize, tc.directs, got, tc.want)
		}
	}
}

func TestTierAmounts(t *testing.T) {
	cases := []struct {
		tier PackageTier
		want int64
	}{
		{Tier30, 30},
		{Tier50, 50},
		{Tier100, 100},
		{Tier200, 200},
	}
	for _, tc := range cases {
		if got := tc.tier.Amount(); got.Cmp(Tokens(tc.want)) != 0 {
			t.Fatalf("%v amount: got %s", tc.tier, got)
		}
	}
	if TierNone.Amount() != nil {
		t.Fatal("TierNone must have no price")
	}
	if TierNone.Valid() || PackageTier(9).Valid() {
		t.Fatal("invalid tiers reported valid")
	}
}
