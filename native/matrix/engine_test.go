package matrix_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"orphifund/core/state"
	. "orphifund/native/matrix"
	"orphifund/native/token"
	"orphifund/storage"
)

func makeAddress(suffix byte) common.Address {
	var addr common.Address
	addr[common.AddressLength-1] = suffix
	return addr
}

var (
	testOwner   = makeAddress(0x01)
	testModule  = makeAddress(0x02)
	testReserve = makeAddress(0x03)
	testRoot    = makeAddress(0x10)
)

type testHarness struct {
	engine *Engine
	ledger *token.Ledger
	state  *state.Manager
	now    int64
}

func newTestHarness(t *testing.T, params PlanParams) *testHarness {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(testOwner)
	ledger.SetState(manager)

	engine, err := NewEngine(params, testOwner, testModule, testReserve)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(manager)
	engine.SetToken(ledger)

	h := &testHarness{engine: engine, ledger: ledger, state: manager, now: 1_700_000_000}
	engine.SetNowFunc(func() int64 { return h.now })

	if err := engine.InitialiseRoot(testRoot); err != nil {
		t.Fatalf("initialise root: %v", err)
	}
	return h
}

// fund mints the package price to the user and approves the module to pull it.
func (h *testHarness) fund(t *testing.T, addr common.Address, amount *big.Int) {
	t.Helper()
	err := h.engine.WithTx(func() error {
		if err := h.ledger.Mint(testOwner, addr, amount); err != nil {
			return err
		}
		current, err := h.ledger.Allowance(addr, testModule)
		if err != nil {
			return err
		}
		return h.ledger.Approve(addr, testModule, new(big.Int).Add(current, amount))
	})
	if err != nil {
		t.Fatalf("fund %s: %v", addr.Hex(), err)
	}
}

func (h *testHarness) register(t *testing.T, caller, sponsor common.Address, tier PackageTier) {
	t.Helper()
	h.fund(t, caller, tier.Amount())
	if err := h.engine.Register(caller, sponsor, tier); err != nil {
		t.Fatalf("register %s: %v", caller.Hex(), err)
	}
}

func (h *testHarness) user(t *testing.T, addr common.Address) *User {
	t.Helper()
	user, err := h.engine.GetUserInfo(addr)
	if err != nil {
		t.Fatalf("get user %s: %v", addr.Hex(), err)
	}
	return user
}

func (h *testHarness) node(t *testing.T, addr common.Address) *Node {
	t.Helper()
	node, err := h.engine.GetMatrixInfo(addr)
	if err != nil {
		t.Fatalf("get node %s: %v", addr.Hex(), err)
	}
	return node
}

func (h *testHarness) pools(t *testing.T) *PoolBalances {
	t.Helper()
	pools, err := h.engine.GetPoolBalances()
	if err != nil {
		t.Fatalf("get pools: %v", err)
	}
	return pools
}

// checkConservation verifies the module's token balance covers exactly the sum
// of withdrawable balances and pool accumulators.
func (h *testHarness) checkConservation(t *testing.T, members ...common.Address) {
	t.Helper()
	held := big.NewInt(0)
	for _, addr := range members {
		held.Add(held, h.user(t, addr).Withdrawable)
	}
	for _, balance := range h.pools(t) {
		held.Add(held, balance)
	}
	moduleBalance, err := h.ledger.BalanceOf(testModule)
	if err != nil {
		t.Fatalf("module balance: %v", err)
	}
	if moduleBalance.Cmp(held) != 0 {
		t.Fatalf("module balance %s does not match ledger total %s", moduleBalance, held)
	}
}

func TestInitialiseRoot(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())

	root := h.user(t, testRoot)
	if root.ID != 1 {
		t.Fatalf("root id: got %d want 1", root.ID)
	}
	if root.Sponsor != testRoot {
		t.Fatalf("root must self-sponsor, got %s", root.Sponsor.Hex())
	}
	if root.Tier != Tier200 {
		t.Fatalf("root tier: got %v want %v", root.Tier, Tier200)
	}
	if root.TotalInvested.Cmp(Tokens(200)) != 0 {
		t.Fatalf("root invested: got %s", root.TotalInvested)
	}

	if err := h.engine.InitialiseRoot(testRoot); !errors.Is(err, ErrAlreadyInitialised) {
		t.Fatalf("second initialise: got %v want %v", err, ErrAlreadyInitialised)
	}

	loaded, err := h.engine.LoadRoot()
	if err != nil {
		t.Fatalf("load root: %v", err)
	}
	if loaded != testRoot {
		t.Fatalf("load root: got %s want %s", loaded.Hex(), testRoot.Hex())
	}
}

func TestRegisterPlacesLeftThenRight(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	user2 := makeAddress(0x22)

	h.register(t, user1, testRoot, Tier30)
	h.register(t, user2, testRoot, Tier30)

	rootNode := h.node(t, testRoot)
	if rootNode.Left != user1 {
		t.Fatalf("root left child: got %s want %s", rootNode.Left.Hex(), user1.Hex())
	}
	if rootNode.Right != user2 {
		t.Fatalf("root right child: got %s want %s", rootNode.Right.Hex(), user2.Hex())
	}
	if h.node(t, user1).Parent != testRoot {
		t.Fatalf("user1 parent: got %s", h.node(t, user1).Parent.Hex())
	}
	if h.node(t, user2).Parent != testRoot {
		t.Fatalf("user2 parent: got %s", h.node(t, user2).Parent.Hex())
	}

	root := h.user(t, testRoot)
	if root.TeamSize != 2 {
		t.Fatalf("root team size: got %d want 2", root.TeamSize)
	}
	if root.DirectCount != 2 {
		t.Fatalf("root direct count: got %d want 2", root.DirectCount)
	}
	if h.user(t, user1).ID != 2 || h.user(t, user2).ID != 3 {
		t.Fatalf("sequential ids: got %d, %d", h.user(t, user1).ID, h.user(t, user2).ID)
	}
}

func TestRegisterSpillsBelowFullSponsor(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	users := []common.Address{makeAddress(0x21), makeAddress(0x22), makeAddress(0x23)}

	for _, u := range users {
		h.register(t, u, testRoot, Tier30)
	}

	// Root's two slots are taken; the third registration spills to the
	// shallowest open slot under the root's left child.
	leftNode := h.node(t, users[0])
	if leftNode.Left != users[2] {
		t.Fatalf("spill placement: got %s want %s", leftNode.Left.Hex(), users[2].Hex())
	}
	if h.node(t, users[2]).Parent != users[0] {
		t.Fatalf("spill parent: got %s", h.node(t, users[2]).Parent.Hex())
	}

	// Matrix ancestors gain team size; the sponsor keeps the direct credit.
	if got := h.user(t, users[0]).TeamSize; got != 1 {
		t.Fatalf("left child team size: got %d want 1", got)
	}
	if got := h.user(t, users[0]).DirectCount; got != 0 {
		t.Fatalf("left child direct count: got %d want 0", got)
	}
	if got := h.user(t, testRoot).TeamSize; got != 3 {
		t.Fatalf("root team size: got %d want 3", got)
	}
	if got := h.user(t, testRoot).DirectCount; got != 3 {
		t.Fatalf("root direct count: got %d want 3", got)
	}
}

func TestRegisterRejections(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	stranger := makeAddress(0x99)

	h.register(t, user1, testRoot, Tier30)

	h.fund(t, user1, Tier30.Amount())
	if err := h.engine.Register(user1, testRoot, Tier30); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate registration: got %v", err)
	}

	candidate := makeAddress(0x22)
	h.fund(t, candidate, Tier30.Amount())
	if err := h.engine.Register(candidate, stranger, Tier30); !errors.Is(err, ErrSponsorNotFound) {
		t.Fatalf("unknown sponsor: got %v", err)
	}
	if err := h.engine.Register(candidate, testRoot, TierNone); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("invalid tier: got %v", err)
	}
	if err := h.engine.Register(candidate, testRoot, PackageTier(9)); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("out of range tier: got %v", err)
	}
}

func TestRegisterFailureLeavesNoTrace(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	broke := makeAddress(0x21)

	// No balance, no allowance: the token pull fails and every staged write
	// must be discarded.
	if err := h.engine.Register(broke, testRoot, Tier30); err == nil {
		t.Fatal("expected registration to fail")
	}
	if _, err := h.engine.GetUserInfo(broke); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("failed registrant persisted: %v", err)
	}
	if got := h.user(t, testRoot).DirectCount; got != 0 {
		t.Fatalf("root direct count after failed registration: got %d", got)
	}

	// The next successful registration still takes ID 2.
	user1 := makeAddress(0x22)
	h.register(t, user1, testRoot, Tier30)
	if got := h.user(t, user1).ID; got != 2 {
		t.Fatalf("id after rollback: got %d want 2", got)
	}
}

func TestDistributionSplitsRegistrationPayment(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)

	h.register(t, user1, testRoot, Tier30)

	// Sponsor commission 40% plus one equal upline share (10% over 30
	// ancestors) both land on the root.
	amount := Tier30.Amount()
	sponsorShare := new(big.Int).Quo(new(big.Int).Mul(amount, big.NewInt(4000)), big.NewInt(BpsDenominator))
	uplineShare := new(big.Int).Quo(new(big.Int).Mul(amount, big.NewInt(1000)), big.NewInt(BpsDenominator))
	perUpline := new(big.Int).Quo(uplineShare, big.NewInt(30))

	want := new(big.Int).Add(sponsorShare, perUpline)
	root := h.user(t, testRoot)
	if root.Withdrawable.Cmp(want) != 0 {
		t.Fatalf("root withdrawable: got %s want %s", root.Withdrawable, want)
	}
	if root.TotalEarnings.Cmp(want) != 0 {
		t.Fatalf("root earnings: got %s want %s", root.TotalEarnings, want)
	}

	pools := h.pools(t)
	leaderShare := new(big.Int).Quo(new(big.Int).Mul(amount, big.NewInt(1000)), big.NewInt(BpsDenominator))
	ghpShare := new(big.Int).Quo(new(big.Int).Mul(amount, big.NewInt(3000)), big.NewInt(BpsDenominator))
	if pools[PoolLeader].Cmp(leaderShare) != 0 {
		t.Fatalf("leader pool: got %s want %s", pools[PoolLeader], leaderShare)
	}
	if pools[PoolGlobalHelp].Cmp(ghpShare) != 0 {
		t.Fatalf("ghp pool: got %s want %s", pools[PoolGlobalHelp], ghpShare)
	}

	// Level shares above the chain top and the 29 unassigned upline slices
	// accrue to leftover. Nothing is lost.
	h.checkConservation(t, testRoot, user1)

	moduleBalance, err := h.ledger.BalanceOf(testModule)
	if err != nil {
		t.Fatalf("module balance: %v", err)
	}
	if moduleBalance.Cmp(amount) != 0 {
		t.Fatalf("module holds %s, want full payment %s", moduleBalance, amount)
	}
}

func TestLevelBonusReachesGrandSponsor(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	user2 := makeAddress(0x22)

	h.register(t, user1, testRoot, Tier30)
	rootBefore := h.user(t, testRoot).Withdrawable

	h.register(t, user2, user1, Tier30)

	// The root is user2's level-1 ancestor (the sponsor's sponsor): 3% of
	// the payment, plus the second equal upline slice.
	amount := Tier30.Amount()
	levelOne := new(big.Int).Quo(new(big.Int).Mul(amount, big.NewInt(300)), big.NewInt(BpsDenominator))
	uplineShare := new(big.Int).Quo(new(big.Int).Mul(amount, big.NewInt(1000)), big.NewInt(BpsDenominator))
	perUpline := new(big.Int).Quo(uplineShare, big.NewInt(30))

	want := new(big.Int).Add(rootBefore, new(big.Int).Add(levelOne, perUpline))
	if got := h.user(t, testRoot).Withdrawable; got.Cmp(want) != 0 {
		t.Fatalf("root withdrawable: got %s want %s", got, want)
	}

	// user1 takes the direct sponsor commission and the first upline slice.
	sponsorShare := new(big.Int).Quo(new(big.Int).Mul(amount, big.NewInt(4000)), big.NewInt(BpsDenominator))
	wantUser1 := new(big.Int).Add(sponsorShare, perUpline)
	if got := h.user(t, user1).Withdrawable; got.Cmp(wantUser1) != 0 {
		t.Fatalf("user1 withdrawable: got %s want %s", got, wantUser1)
	}

	h.checkConservation(t, testRoot, user1, user2)
}

func TestEarningsCap(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	h.register(t, user1, testRoot, Tier30)

	// Two top-tier registrations under user1 pay 80 token commissions each;
	// the second one collides with user1's 120 token ceiling.
	first := makeAddress(0x31)
	second := makeAddress(0x32)
	h.register(t, first, user1, Tier200)

	leftoverBefore := h.pools(t)[PoolLeftover]
	h.register(t, second, user1, Tier200)

	user := h.user(t, user1)
	if !user.Capped {
		t.Fatal("expected user1 to be capped")
	}
	ceiling := new(big.Int).Mul(user.TotalInvested, big.NewInt(EarningsCapMultiplier))
	if user.TotalEarnings.Cmp(ceiling) != 0 {
		t.Fatalf("capped earnings: got %s want %s", user.TotalEarnings, ceiling)
	}

	// The truncated portion of the second commission moved to leftover.
	leftoverAfter := h.pools(t)[PoolLeftover]
	if leftoverAfter.Cmp(leftoverBefore) <= 0 {
		t.Fatalf("leftover did not absorb cap shortfall: %s -> %s", leftoverBefore, leftoverAfter)
	}
	h.checkConservation(t, testRoot, user1, first, second)

	// Further credits to a capped user accrue to leftover, not earnings.
	third := makeAddress(0x33)
	h.register(t, third, user1, Tier30)
	if got := h.user(t, user1).TotalEarnings; got.Cmp(ceiling) != 0 {
		t.Fatalf("capped user earned past ceiling: %s", got)
	}
	h.checkConservation(t, testRoot, user1, first, second, third)
}

func TestWithdraw(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	h.register(t, user1, testRoot, Tier30)

	// Root has fewer than five directs: 70% payout, 30% retained.
	root := h.user(t, testRoot)
	balance := root.Withdrawable
	payout := new(big.Int).Quo(new(big.Int).Mul(balance, big.NewInt(7000)), big.NewInt(BpsDenominator))
	reinvest := new(big.Int).Sub(balance, payout)

	if err := h.engine.Withdraw(testRoot); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	walletBalance, err := h.ledger.BalanceOf(testRoot)
	if err != nil {
		t.Fatalf("root wallet balance: %v", err)
	}
	if walletBalance.Cmp(payout) != 0 {
		t.Fatalf("paid out: got %s want %s", walletBalance, payout)
	}
	if got := h.user(t, testRoot).Withdrawable; got.Cmp(reinvest) != 0 {
		t.Fatalf("retained: got %s want %s", got, reinvest)
	}
	// Lifetime earnings are untouched by withdrawal.
	if got := h.user(t, testRoot).TotalEarnings; got.Cmp(root.TotalEarnings) != 0 {
		t.Fatalf("earnings changed on withdraw: got %s want %s", got, root.TotalEarnings)
	}

	if err := h.engine.Withdraw(makeAddress(0x99)); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown withdrawer: got %v", err)
	}
	if err := h.engine.Withdraw(user1); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("user1 has no earnings yet: got %v", err)
	}
}

func TestWithdrawRateRisesWithDirects(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	h.register(t, user1, testRoot, Tier30)

	for i := byte(0); i < 5; i++ {
		h.register(t, makeAddress(0x30+i), user1, Tier30)
	}
	if got := h.user(t, user1).DirectCount; got != 5 {
		t.Fatalf("direct count: got %d want 5", got)
	}

	balance := h.user(t, user1).Withdrawable
	payout := new(big.Int).Quo(new(big.Int).Mul(balance, big.NewInt(7500)), big.NewInt(BpsDenominator))
	if err := h.engine.Withdraw(user1); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	walletBalance, err := h.ledger.BalanceOf(user1)
	if err != nil {
		t.Fatalf("wallet balance: %v", err)
	}
	if walletBalance.Cmp(payout) != 0 {
		t.Fatalf("payout at five directs: got %s want %s", walletBalance, payout)
	}
}

func TestWithdrawNothing(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	h.register(t, user1, testRoot, Tier30)

	if err := h.engine.Withdraw(user1); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("empty balance withdraw: got %v", err)
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	h.register(t, user1, testRoot, Tier30)

	if err := h.engine.Pause(user1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("pause by non-owner: got %v", err)
	}
	if err := h.engine.Pause(testOwner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, err := h.engine.Paused()
	if err != nil || !paused {
		t.Fatalf("paused flag: %v %v", paused, err)
	}

	candidate := makeAddress(0x22)
	h.fund(t, candidate, Tier30.Amount())
	if err := h.engine.Register(candidate, testRoot, Tier30); !errors.Is(err, ErrPaused) {
		t.Fatalf("register while paused: got %v", err)
	}
	if err := h.engine.Withdraw(testRoot); !errors.Is(err, ErrPaused) {
		t.Fatalf("withdraw while paused: got %v", err)
	}
	if err := h.engine.DistributeGlobalHelpPool(testOwner, true); !errors.Is(err, ErrPaused) {
		t.Fatalf("distribution while paused: got %v", err)
	}

	if err := h.engine.Unpause(testOwner); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := h.engine.Register(candidate, testRoot, Tier30); err != nil {
		t.Fatalf("register after unpause: %v", err)
	}
}

func TestEmergencyLockAndSweep(t *testing.T) {
	h := newTestHarness(t, DefaultPlanParams())
	user1 := makeAddress(0x21)
	h.register(t, user1, testRoot, Tier30)

	if err := h.engine.EmergencyLock(user1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("lock by non-owner: got %v", err)
	}
	if err := h.engine.EmergencyLock(testOwner); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := h.engine.Withdraw(testRoot); !errors.Is(err, ErrEmergencyLocked) {
		t.Fatalf("withdraw while locked: got %v", err)
	}

	// The sweep stays available under lock.
	sweep := Tokens(10)
	if err := h.engine.EmergencyWithdraw(user1, sweep); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("sweep by non-owner: got %v", err)
	}
	if err := h.engine.EmergencyWithdraw(testOwner, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero sweep: got %v", err)
	}
	if err := h.engine.EmergencyWithdraw(testOwner, Tokens(1000)); !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("oversized sweep: got %v", err)
	}
	if err := h.engine.EmergencyWithdraw(testOwner, sweep); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	reserveBalance, err := h.ledger.BalanceOf(testReserve)
	if err != nil {
		t.Fatalf("reserve balance: %v", err)
	}
	if reserveBalance.Cmp(sweep) != 0 {
		t.Fatalf("reserve received %s, want %s", reserveBalance, sweep)
	}

	if err := h.engine.EmergencyUnlock(testOwner); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := h.engine.Withdraw(testRoot); err != nil {
		t.Fatalf("withdraw after unlock: %v", err)
	}
}
