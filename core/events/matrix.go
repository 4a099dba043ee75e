package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeUserRegistered is emitted once per successful registration.
	TypeUserRegistered = "matrix.userRegistered"
	// TypePackageUpgraded signals an automatic tier upgrade driven by team size.
	TypePackageUpgraded = "matrix.packageUpgraded"
	// TypeLeaderRankChanged signals a leader rank promotion or demotion.
	TypeLeaderRankChanged = "matrix.leaderRankChanged"
	// TypeEarningsCapReached is emitted the moment a user hits the 4x ceiling.
	TypeEarningsCapReached = "matrix.earningsCapReached"
	// TypeWithdrawal captures a completed withdrawal split.
	TypeWithdrawal = "matrix.withdrawal"
	// TypePoolDistributed captures a completed pool distribution run.
	TypePoolDistributed = "matrix.poolDistributed"
	// TypeSystemPaused / TypeSystemUnpaused track the global pause switch.
	TypeSystemPaused   = "matrix.systemPaused"
	TypeSystemUnpaused = "matrix.systemUnpaused"
	// TypeEmergencyLocked / TypeEmergencyUnlocked track the emergency lock.
	TypeEmergencyLocked   = "matrix.emergencyLocked"
	TypeEmergencyUnlocked = "matrix.emergencyUnlocked"
	// TypeEmergencyWithdrawal captures an owner sweep to the admin reserve.
	TypeEmergencyWithdrawal = "matrix.emergencyWithdrawal"
)

// UserRegistered captures the outcome of a registration: identity, placement
// and the amount paid in. Indexers can rebuild the tree from these alone.
type UserRegistered struct {
	User      common.Address `json:"user"`
	Sponsor   common.Address `json:"sponsor"`
	Placement common.Address `json:"placement"`
	ID        uint64         `json:"id"`
	Tier      uint8          `json:"tier"`
	Amount    *big.Int       `json:"amount"`
	Timestamp uint64         `json:"timestamp"`
}

func (UserRegistered) EventType() string { return TypeUserRegistered }

type PackageUpgraded struct {
	User      common.Address `json:"user"`
	OldTier   uint8          `json:"oldTier"`
	NewTier   uint8          `json:"newTier"`
	TeamSize  uint64         `json:"teamSize"`
	Timestamp uint64         `json:"timestamp"`
}

func (PackageUpgraded) EventType() string { return TypePackageUpgraded }

type LeaderRankChanged struct {
	User      common.Address `json:"user"`
	OldRank   uint8          `json:"oldRank"`
	NewRank   uint8          `json:"newRank"`
	Timestamp uint64         `json:"timestamp"`
}

func (LeaderRankChanged) EventType() string { return TypeLeaderRankChanged }

type EarningsCapReached struct {
	User          common.Address `json:"user"`
	TotalEarnings *big.Int       `json:"totalEarnings"`
	Timestamp     uint64         `json:"timestamp"`
}

func (EarningsCapReached) EventType() string { return TypeEarningsCapReached }

type Withdrawal struct {
	User       common.Address `json:"user"`
	Paid       *big.Int       `json:"paid"`
	Reinvested *big.Int       `json:"reinvested"`
	RateBps    uint64         `json:"rateBps"`
	Timestamp  uint64         `json:"timestamp"`
}

func (Withdrawal) EventType() string { return TypeWithdrawal }

type PoolDistributed struct {
	Pool       string   `json:"pool"`
	Budget     *big.Int `json:"budget"`
	TotalPaid  *big.Int `json:"totalPaid"`
	Recipients uint64   `json:"recipients"`
	Timestamp  uint64   `json:"timestamp"`
}

func (PoolDistributed) EventType() string { return TypePoolDistributed }

type SystemPaused struct {
	Timestamp uint64 `json:"timestamp"`
}

func (SystemPaused) EventType() string { return TypeSystemPaused }

type SystemUnpaused struct {
	Timestamp uint64 `json:"timestamp"`
}

func (SystemUnpaused) EventType() string { return TypeSystemUnpaused }

type EmergencyLocked struct {
	Timestamp uint64 `json:"timestamp"`
}

func (EmergencyLocked) EventType() string { return TypeEmergencyLocked }

type EmergencyUnlocked struct {
	Timestamp uint64 `json:"timestamp"`
}

func (EmergencyUnlocked) EventType() string { return TypeEmergencyUnlocked }

type EmergencyWithdrawal struct {
	To        common.Address `json:"to"`
	Amount    *big.Int       `json:"amount"`
	Timestamp uint64         `json:"timestamp"`
}

func (EmergencyWithdrawal) EventType() string { return TypeEmergencyWithdrawal }
