package matrix

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"orphifund/core/events"
)

// engineState is the narrow view of the surrounding state implementation the
// compensation engine needs. Writes are staged until Commit; Reset discards
// staged writes so every entry point is all-or-nothing.
type engineState interface {
	MatrixUser(addr common.Address) (*User, bool, error)
	PutMatrixUser(addr common.Address, user *User) error
	MatrixNode(addr common.Address) (*Node, bool, error)
	PutMatrixNode(addr common.Address, node *Node) error
	MatrixMembers() ([]common.Address, error)
	AppendMatrixMember(addr common.Address) error
	MatrixNextID() (uint64, error)
	SetMatrixNextID(id uint64) error
	MatrixPools() (*PoolBalances, error)
	PutMatrixPools(pools *PoolBalances) error
	MatrixLastDistribution(pool Pool) (uint64, error)
	SetMatrixLastDistribution(pool Pool, ts uint64) error
	MatrixPaused() (bool, error)
	SetMatrixPaused(paused bool) error
	MatrixLocked() (bool, error)
	SetMatrixLocked(locked bool) error

	Commit() error
	Reset()
}

// TokenLedger is the ERC20-style payment token the engine consumes. Transfer
// semantics are assumed atomic within the surrounding state transaction.
type TokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) (*big.Int, error)
}

// Engine owns the matrix ledger: registry, placement, commission
// distribution, withdrawal and pool jobs. A single mutex serialises all
// entry points, standing in for the host chain's total ordering.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	token   TokenLedger
	emitter events.Emitter
	params  PlanParams

	owner        common.Address
	root         common.Address
	moduleAddr   common.Address
	adminReserve common.Address

	nowFn func() int64
}

// NewEngine constructs an engine for the given plan. The module address holds
// registration payments until they are withdrawn or swept.
func NewEngine(params PlanParams, owner, moduleAddr, adminReserve common.Address) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		emitter:      events.NoopEmitter{},
		params:       params,
		owner:        owner,
		moduleAddr:   moduleAddr,
		adminReserve: adminReserve,
		nowFn:        func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken wires the payment token ledger.
func (e *Engine) SetToken(token TokenLedger) { e.token = token }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns the active compensation plan.
func (e *Engine) Params() PlanParams { return e.params }

// ModuleAddress returns the account holding undistributed funds.
func (e *Engine) ModuleAddress() common.Address { return e.moduleAddr }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// run serialises an entry point and commits staged state on success, or
// discards it on any error, so no partial effect survives.
func (e *Engine) run(fn func() error) error {
	if e.state == nil {
		return ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(); err != nil {
		e.state.Reset()
		return err
	}
	if err := e.state.Commit(); err != nil {
		e.state.Reset()
		return err
	}
	return nil
}

// WithTx runs fn under the engine's transaction discipline: serialised with
// every other entry point, committed on success, discarded on error. Used by
// callers that mutate shared state outside the engine's own operations, such
// as token approvals arriving over RPC.
func (e *Engine) WithTx(fn func() error) error {
	return e.run(fn)
}

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return nil
}

// guard rejects user-facing mutations while paused or emergency locked.
func (e *Engine) guard() error {
	paused, err := e.state.MatrixPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	locked, err := e.state.MatrixLocked()
	if err != nil {
		return err
	}
	if locked {
		return ErrEmergencyLocked
	}
	return nil
}

// InitialiseRoot registers the matrix root implicitly with the top package
// tier and no sponsor. It must run exactly once before any registration.
func (e *Engine) InitialiseRoot(root common.Address) error {
	return e.run(func() error {
		if _, found, err := e.state.MatrixUser(root); err != nil {
			return err
		} else if found {
			return ErrAlreadyInitialised
		}
		e.root = root
		user := &User{
			ID:            1,
			Sponsor:       root,
			Tier:          Tier200,
			TotalInvested: cloneBigInt(Tier200.Amount()),
			Withdrawable:  big.NewInt(0),
			TotalEarnings: big.NewInt(0),
			RegisteredAt:  e.now(),
		}
		if err := e.state.PutMatrixUser(root, user); err != nil {
			return err
		}
		if err := e.state.PutMatrixNode(root, &Node{}); err != nil {
			return err
		}
		if err := e.state.AppendMatrixMember(root); err != nil {
			return err
		}
		if err := e.state.SetMatrixNextID(2); err != nil {
			return err
		}
		return e.state.PutMatrixPools(NewPoolBalances())
	})
}

// LoadRoot restores the root address after a restart.
func (e *Engine) LoadRoot() (common.Address, error) {
	var root common.Address
	err := e.run(func() error {
		members, err := e.state.MatrixMembers()
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return ErrNotInitialised
		}
		root = members[0]
		e.root = root
		return nil
	})
	return root, err
}

// Register creates the caller's ledger record, places it in the matrix and
// distributes the payment across commissions and pools.
func (e *Engine) Register(caller, sponsor common.Address, tier PackageTier) error {
	return e.run(func() error {
		if e.token == nil {
			return ErrNilToken
		}
		if err := e.guard(); err != nil {
			return err
		}
		if !tier.Valid() {
			return ErrInvalidTier
		}
		if _, found, err := e.state.MatrixUser(caller); err != nil {
			return err
		} else if found {
			return ErrAlreadyRegistered
		}
		if _, found, err := e.state.MatrixUser(sponsor); err != nil {
			return err
		} else if !found {
			return ErrSponsorNotFound
		}

		amount := tier.Amount()
		if err := e.token.TransferFrom(e.moduleAddr, caller, e.moduleAddr, amount); err != nil {
			return err
		}

		id, err := e.state.MatrixNextID()
		if err != nil {
			return err
		}
		if err := e.state.SetMatrixNextID(id + 1); err != nil {
			return err
		}
		now := e.now()
		user := &User{
			ID:            id,
			Sponsor:       sponsor,
			Tier:          tier,
			TotalInvested: cloneBigInt(amount),
			Withdrawable:  big.NewInt(0),
			TotalEarnings: big.NewInt(0),
			RegisteredAt:  now,
		}
		if err := e.state.PutMatrixUser(caller, user); err != nil {
			return err
		}
		if err := e.state.AppendMatrixMember(caller); err != nil {
			return err
		}

		placement, err := e.placeInMatrix(sponsor, caller)
		if err != nil {
			return err
		}

		// Placement already bumped the sponsor's team size; reload before
		// recording the direct referral.
		sponsorUser, _, err := e.state.MatrixUser(sponsor)
		if err != nil {
			return err
		}
		sponsorUser = sponsorUser.Clone()
		sponsorUser.DirectCount++
		if err := e.state.PutMatrixUser(sponsor, sponsorUser); err != nil {
			return err
		}
		if err := e.refreshStanding(sponsor); err != nil {
			return err
		}

		if err := e.distribute(sponsor, amount); err != nil {
			return err
		}

		e.emit(events.UserRegistered{
			User:      caller,
			Sponsor:   sponsor,
			Placement: placement,
			ID:        id,
			Tier:      uint8(tier),
			Amount:    cloneBigInt(amount),
			Timestamp: now,
		})
		return nil
	})
}

// Withdraw pays the caller the tiered percentage of the accrued balance and
// retains the remainder for compounding.
func (e *Engine) Withdraw(caller common.Address) error {
	return e.run(func() error {
		if e.token == nil {
			return ErrNilToken
		}
		if err := e.guard(); err != nil {
			return err
		}
		user, found, err := e.state.MatrixUser(caller)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		if user.Withdrawable == nil || user.Withdrawable.Sign() <= 0 {
			return ErrNothingToWithdraw
		}

		rate := e.params.WithdrawRateBps(user.DirectCount)
		payout := mulBps(user.Withdrawable, rate)
		reinvest := new(big.Int).Sub(user.Withdrawable, payout)

		user = user.Clone()
		user.Withdrawable = reinvest
		if err := e.state.PutMatrixUser(caller, user); err != nil {
			return err
		}
		if err := e.token.Transfer(e.moduleAddr, caller, payout); err != nil {
			return err
		}

		e.emit(events.Withdrawal{
			User:       caller,
			Paid:       payout,
			Reinvested: cloneBigInt(reinvest),
			RateBps:    rate,
			Timestamp:  e.now(),
		})
		return nil
	})
}

// Pause halts registrations, withdrawals and distributions.
func (e *Engine) Pause(caller common.Address) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.state.SetMatrixPaused(true); err != nil {
			return err
		}
		e.emit(events.SystemPaused{Timestamp: e.now()})
		return nil
	})
}

// Unpause re-enables state-changing operations.
func (e *Engine) Unpause(caller common.Address) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.state.SetMatrixPaused(false); err != nil {
			return err
		}
		e.emit(events.SystemUnpaused{Timestamp: e.now()})
		return nil
	})
}

// EmergencyLock blocks registration and withdrawal while leaving admin
// recovery operations available. Reversible via EmergencyUnlock.
func (e *Engine) EmergencyLock(caller common.Address) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.state.SetMatrixLocked(true); err != nil {
			return err
		}
		e.emit(events.EmergencyLocked{Timestamp: e.now()})
		return nil
	})
}

func (e *Engine) EmergencyUnlock(caller common.Address) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.state.SetMatrixLocked(false); err != nil {
			return err
		}
		e.emit(events.EmergencyUnlocked{Timestamp: e.now()})
		return nil
	})
}

// EmergencyWithdraw sweeps part of the module token balance to the admin
// reserve. Available even under emergency lock.
func (e *Engine) EmergencyWithdraw(caller common.Address, amount *big.Int) error {
	return e.run(func() error {
		if e.token == nil {
			return ErrNilToken
		}
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		balance, err := e.token.BalanceOf(e.moduleAddr)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return ErrInsufficientReserve
		}
		if err := e.token.Transfer(e.moduleAddr, e.adminReserve, amount); err != nil {
			return err
		}
		e.emit(events.EmergencyWithdrawal{
			To:        e.adminReserve,
			Amount:    cloneBigInt(amount),
			Timestamp: e.now(),
		})
		return nil
	})
}

// GetUserInfo returns a read-only snapshot of a user record.
func (e *Engine) GetUserInfo(addr common.Address) (*User, error) {
	var snapshot *User
	err := e.run(func() error {
		user, found, err := e.state.MatrixUser(addr)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		snapshot = user.Clone()
		return nil
	})
	return snapshot, err
}

// GetMatrixInfo returns a user's placement tree slot.
func (e *Engine) GetMatrixInfo(addr common.Address) (*Node, error) {
	var snapshot *Node
	err := e.run(func() error {
		node, found, err := e.state.MatrixNode(addr)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		snapshot = node.Clone()
		return nil
	})
	return snapshot, err
}

// GetPoolBalances returns the six pool accumulators.
func (e *Engine) GetPoolBalances() (*PoolBalances, error) {
	var snapshot *PoolBalances
	err := e.run(func() error {
		pools, err := e.state.MatrixPools()
		if err != nil {
			return err
		}
		snapshot = pools.Clone()
		return nil
	})
	return snapshot, err
}

// Paused reports the global pause switch.
func (e *Engine) Paused() (bool, error) {
	var paused bool
	err := e.run(func() error {
		var innerErr error
		paused, innerErr = e.state.MatrixPaused()
		return innerErr
	})
	return paused, err
}

func mulBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return product.Quo(product, big.NewInt(BpsDenominator))
}
