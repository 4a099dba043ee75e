package matrix

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"orphifund/core/events"
)

// DistributeGlobalHelpPool pays the GHP balance pro-rata by cumulative
// investment to every non-capped registered user, then zeroes the pool.
// Owner only; non-forced runs require the configured interval to have
// elapsed since the previous run. An empty pool is a no-op.
func (e *Engine) DistributeGlobalHelpPool(caller common.Address, force bool) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.guard(); err != nil {
			return err
		}
		if !force {
			if err := e.checkInterval(PoolGlobalHelp, e.params.GlobalHelpIntervalSecs); err != nil {
				return err
			}
		}
		recipients, weights, totalWeight, err := e.helpPoolSnapshot()
		if err != nil {
			return err
		}
		return e.payoutPool(PoolGlobalHelp, recipients, weights, totalWeight)
	})
}

// DistributeLeaderBonus splits the leader pool 50/50 between the Silver Star
// and Shining Star cohorts, each half pro-rata by team size. An empty
// cohort's half accrues to leftover.
func (e *Engine) DistributeLeaderBonus(caller common.Address, force bool) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.guard(); err != nil {
			return err
		}
		if !force {
			if err := e.checkInterval(PoolLeader, e.params.LeaderBonusIntervalSecs); err != nil {
				return err
			}
		}

		pools, err := e.state.MatrixPools()
		if err != nil {
			return err
		}
		pools = pools.Clone()
		budget := cloneBigInt(pools[PoolLeader])
		now := e.now()
		if budget.Sign() <= 0 {
			return e.state.SetMatrixLastDistribution(PoolLeader, now)
		}

		silver, silverWeights, silverTotal, err := e.leaderSnapshot(RankSilverStar)
		if err != nil {
			return err
		}
		shining, shiningWeights, shiningTotal, err := e.leaderSnapshot(RankShiningStar)
		if err != nil {
			return err
		}

		half := new(big.Int).Quo(budget, big.NewInt(2))
		otherHalf := new(big.Int).Sub(budget, half)

		totalPaid := big.NewInt(0)
		paid, err := e.payCohort(silver, silverWeights, silverTotal, half, pools)
		if err != nil {
			return err
		}
		totalPaid.Add(totalPaid, paid)
		paid, err = e.payCohort(shining, shiningWeights, shiningTotal, otherHalf, pools)
		if err != nil {
			return err
		}
		totalPaid.Add(totalPaid, paid)

		// Unpaid halves and rounding residue stay in the system.
		pools.Add(PoolLeftover, new(big.Int).Sub(budget, totalPaid))
		pools[PoolLeader] = big.NewInt(0)
		if err := e.state.PutMatrixPools(pools); err != nil {
			return err
		}
		if err := e.state.SetMatrixLastDistribution(PoolLeader, now); err != nil {
			return err
		}
		e.emit(events.PoolDistributed{
			Pool:       PoolLeader.String(),
			Budget:     budget,
			TotalPaid:  totalPaid,
			Recipients: uint64(len(silver) + len(shining)),
			Timestamp:  now,
		})
		return nil
	})
}

func (e *Engine) checkInterval(pool Pool, intervalSecs uint64) error {
	last, err := e.state.MatrixLastDistribution(pool)
	if err != nil {
		return err
	}
	if last > 0 && e.now() < last+intervalSecs {
		return ErrDistributionNotDue
	}
	return nil
}

// helpPoolSnapshot lists non-capped users weighted by total investment.
func (e *Engine) helpPoolSnapshot() ([]common.Address, map[common.Address]*big.Int, *big.Int, error) {
	members, err := e.state.MatrixMembers()
	if err != nil {
		return nil, nil, nil, err
	}
	recipients := make([]common.Address, 0, len(members))
	weights := make(map[common.Address]*big.Int, len(members))
	totalWeight := big.NewInt(0)
	for _, addr := range members {
		user, found, err := e.state.MatrixUser(addr)
		if err != nil {
			return nil, nil, nil, err
		}
		if !found || user.Capped {
			continue
		}
		weight := cloneBigInt(user.TotalInvested)
		if weight.Sign() <= 0 {
			continue
		}
		recipients = append(recipients, addr)
		weights[addr] = weight
		totalWeight.Add(totalWeight, weight)
	}
	return recipients, weights, totalWeight, nil
}

// leaderSnapshot lists non-capped users holding exactly the given rank,
// weighted by team size.
func (e *Engine) leaderSnapshot(rank LeaderRank) ([]common.Address, map[common.Address]*big.Int, *big.Int, error) {
	members, err := e.state.MatrixMembers()
	if err != nil {
		return nil, nil, nil, err
	}
	recipients := make([]common.Address, 0)
	weights := make(map[common.Address]*big.Int)
	totalWeight := big.NewInt(0)
	for _, addr := range members {
		user, found, err := e.state.MatrixUser(addr)
		if err != nil {
			return nil, nil, nil, err
		}
		if !found || user.Capped || user.Rank != rank || user.TeamSize == 0 {
			continue
		}
		weight := new(big.Int).SetUint64(user.TeamSize)
		recipients = append(recipients, addr)
		weights[addr] = weight
		totalWeight.Add(totalWeight, weight)
	}
	return recipients, weights, totalWeight, nil
}

// payoutPool distributes a pool's full balance across the snapshot and
// zeroes it, recording the run timestamp and emitting the outcome.
func (e *Engine) payoutPool(pool Pool, recipients []common.Address, weights map[common.Address]*big.Int, totalWeight *big.Int) error {
	pools, err := e.state.MatrixPools()
	if err != nil {
		return err
	}
	pools = pools.Clone()
	budget := cloneBigInt(pools[pool])
	now := e.now()
	if budget.Sign() <= 0 {
		return e.state.SetMatrixLastDistribution(pool, now)
	}

	totalPaid, err := e.payCohort(recipients, weights, totalWeight, budget, pools)
	if err != nil {
		return err
	}
	pools.Add(PoolLeftover, new(big.Int).Sub(budget, totalPaid))
	pools[pool] = big.NewInt(0)
	if err := e.state.PutMatrixPools(pools); err != nil {
		return err
	}
	if err := e.state.SetMatrixLastDistribution(pool, now); err != nil {
		return err
	}
	e.emit(events.PoolDistributed{
		Pool:       pool.String(),
		Budget:     budget,
		TotalPaid:  totalPaid,
		Recipients: uint64(len(recipients)),
		Timestamp:  now,
	})
	return nil
}

// payCohort credits each recipient budget*weight/totalWeight, cap-enforced,
// and returns the sum of computed shares (cap shortfalls are already routed
// to leftover by creditWithCap).
func (e *Engine) payCohort(recipients []common.Address, weights map[common.Address]*big.Int, totalWeight, budget *big.Int, pools *PoolBalances) (*big.Int, error) {
	paid := big.NewInt(0)
	if len(recipients) == 0 || totalWeight.Sign() <= 0 || budget.Sign() <= 0 {
		return paid, nil
	}
	for _, addr := range recipients {
		share := new(big.Int).Mul(budget, weights[addr])
		share.Quo(share, totalWeight)
		if share.Sign() <= 0 {
			continue
		}
		if err := e.creditWithCap(addr, share, pools); err != nil {
			return nil, err
		}
		paid.Add(paid, share)
	}
	return paid, nil
}
