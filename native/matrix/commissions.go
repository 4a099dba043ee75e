package matrix

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"orphifund/core/events"
)

// distribute splits a registration payment across the sponsor commission,
// level bonuses, the equal-share upline walk and the pooled reserves. Every
// base unit of the payment lands somewhere: credited, pooled, or leftover.
func (e *Engine) distribute(sponsor common.Address, amount *big.Int) error {
	pools, err := e.state.MatrixPools()
	if err != nil {
		return err
	}
	pools = pools.Clone()

	total := big.NewInt(0)

	sponsorShare := mulBps(amount, e.params.SponsorBps)
	total.Add(total, sponsorShare)
	if err := e.creditWithCap(sponsor, sponsorShare, pools); err != nil {
		return err
	}

	if err := e.payLevelBonuses(sponsor, amount, pools, total); err != nil {
		return err
	}
	if err := e.payUplineShares(sponsor, amount, pools, total); err != nil {
		return err
	}

	leaderShare := mulBps(amount, e.params.LeaderBps)
	ghpShare := mulBps(amount, e.params.GlobalHelpBps)
	pools.Add(PoolLeader, leaderShare)
	pools.Add(PoolGlobalHelp, ghpShare)
	total.Add(total, leaderShare)
	total.Add(total, ghpShare)

	// Rounding residue from the floor divisions above.
	pools.Add(PoolLeftover, new(big.Int).Sub(amount, total))

	return e.state.PutMatrixPools(pools)
}

// payLevelBonuses walks the sponsor chain upward from the sponsor's own
// sponsor, paying the per-level table. Levels beyond the top of the chain
// accrue to the leftover pool.
func (e *Engine) payLevelBonuses(sponsor common.Address, amount *big.Int, pools *PoolBalances, total *big.Int) error {
	current := sponsor
	for _, bps := range e.params.LevelBps {
		share := mulBps(amount, bps)
		total.Add(total, share)

		user, found, err := e.state.MatrixUser(current)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		if user.Sponsor == current {
			// Top of the chain: the root self-sponsors.
			pools.Add(PoolLeftover, share)
			continue
		}
		current = user.Sponsor
		if err := e.creditWithCap(current, share, pools); err != nil {
			return err
		}
	}
	return nil
}

// payUplineShares splits the global upline allocation equally across up to
// UplineDepth sponsor-chain ancestors starting with the sponsor. Shares for
// missing ancestors and the division residue accrue to leftover.
func (e *Engine) payUplineShares(sponsor common.Address, amount *big.Int, pools *PoolBalances, total *big.Int) error {
	share := mulBps(amount, e.params.UplineBps)
	total.Add(total, share)
	if share.Sign() <= 0 || e.params.UplineDepth == 0 {
		pools.Add(PoolLeftover, share)
		return nil
	}
	per := new(big.Int).Quo(share, new(big.Int).SetUint64(e.params.UplineDepth))
	paid := big.NewInt(0)

	current := sponsor
	for depth := uint64(0); depth < e.params.UplineDepth; depth++ {
		if err := e.creditWithCap(current, per, pools); err != nil {
			return err
		}
		paid.Add(paid, per)

		user, found, err := e.state.MatrixUser(current)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		if user.Sponsor == current {
			break
		}
		current = user.Sponsor
	}
	pools.Add(PoolLeftover, new(big.Int).Sub(share, paid))
	return nil
}

// creditWithCap credits a user's withdrawable balance and lifetime earnings,
// clamped to the 4x investment ceiling. Credits to an already capped user and
// any cap-truncated shortfall route to the leftover pool, so the outcome is
// independent of credit ordering for a fixed credit sequence.
func (e *Engine) creditWithCap(addr common.Address, amount *big.Int, pools *PoolBalances) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	user, found, err := e.state.MatrixUser(addr)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	if user.Capped {
		pools.Add(PoolLeftover, amount)
		return nil
	}

	ceiling := new(big.Int).Mul(user.TotalInvested, big.NewInt(EarningsCapMultiplier))
	headroom := new(big.Int).Sub(ceiling, user.TotalEarnings)
	if headroom.Sign() < 0 {
		headroom = big.NewInt(0)
	}
	allowed := amount
	if headroom.Cmp(amount) < 0 {
		allowed = headroom
	}

	user = user.Clone()
	user.Withdrawable = new(big.Int).Add(user.Withdrawable, allowed)
	user.TotalEarnings = new(big.Int).Add(user.TotalEarnings, allowed)
	nowCapped := user.TotalEarnings.Cmp(ceiling) >= 0
	if nowCapped {
		user.Capped = true
	}
	if err := e.state.PutMatrixUser(addr, user); err != nil {
		return err
	}

	if shortfall := new(big.Int).Sub(amount, allowed); shortfall.Sign() > 0 {
		pools.Add(PoolLeftover, shortfall)
	}
	if nowCapped {
		e.emit(events.EarningsCapReached{
			User:          addr,
			TotalEarnings: cloneBigInt(user.TotalEarnings),
			Timestamp:     e.now(),
		})
	}
	return nil
}
