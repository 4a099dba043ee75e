package matrix

import (
	"github.com/ethereum/go-ethereum/common"

	"orphifund/core/events"
)

var zeroAddress common.Address

// placeInMatrix attaches the new user at the shallowest open slot reachable
// by level-order search from the sponsor's node, left before right, and
// returns the parent the user was attached to. Ancestor team sizes along the
// matrix path are updated afterwards.
func (e *Engine) placeInMatrix(sponsor, user common.Address) (common.Address, error) {
	queue := []common.Address{sponsor}
	var parent common.Address
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node, found, err := e.state.MatrixNode(current)
		if err != nil {
			return zeroAddress, err
		}
		if !found {
			return zeroAddress, ErrSponsorNotFound
		}
		if node.Left == zeroAddress {
			node = node.Clone()
			node.Left = user
			if err := e.state.PutMatrixNode(current, node); err != nil {
				return zeroAddress, err
			}
			parent = current
			break
		}
		if node.Right == zeroAddress {
			node = node.Clone()
			node.Right = user
			if err := e.state.PutMatrixNode(current, node); err != nil {
				return zeroAddress, err
			}
			parent = current
			break
		}
		queue = append(queue, node.Left, node.Right)
	}
	if err := e.state.PutMatrixNode(user, &Node{Parent: parent}); err != nil {
		return zeroAddress, err
	}
	if err := e.bumpTeamSizes(parent); err != nil {
		return zeroAddress, err
	}
	return parent, nil
}

// bumpTeamSizes increments TeamSize for every matrix ancestor from the
// placement parent up to the root, re-evaluating upgrades and ranks.
func (e *Engine) bumpTeamSizes(from common.Address) error {
	current := from
	for {
		user, found, err := e.state.MatrixUser(current)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		user = user.Clone()
		user.TeamSize++
		if err := e.state.PutMatrixUser(current, user); err != nil {
			return err
		}
		if err := e.refreshStanding(current); err != nil {
			return err
		}
		node, found, err := e.state.MatrixNode(current)
		if err != nil {
			return err
		}
		if !found || node.Parent == zeroAddress {
			return nil
		}
		current = node.Parent
	}
}

// refreshStanding applies automatic package upgrades and leader rank changes
// after a user's team size or direct-sponsor count moved.
func (e *Engine) refreshStanding(addr common.Address) error {
	user, found, err := e.state.MatrixUser(addr)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	upgraded := e.params.UpgradeTier(user.TeamSize, user.Tier)
	rank := e.params.RankFor(user.TeamSize, user.DirectCount)
	if upgraded == user.Tier && rank == user.Rank {
		return nil
	}
	oldTier, oldRank := user.Tier, user.Rank
	user = user.Clone()
	user.Tier = upgraded
	user.Rank = rank
	if err := e.state.PutMatrixUser(addr, user); err != nil {
		return err
	}
	if upgraded != oldTier {
		e.emit(events.PackageUpgraded{
			User:      addr,
			OldTier:   uint8(oldTier),
			NewTier:   uint8(upgraded),
			TeamSize:  user.TeamSize,
			Timestamp: e.now(),
		})
	}
	if rank != oldRank {
		e.emit(events.LeaderRankChanged{
			User:      addr,
			OldRank:   uint8(oldRank),
			NewRank:   uint8(rank),
			Timestamp: e.now(),
		})
	}
	return nil
}
