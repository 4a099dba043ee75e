package matrix

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PackageTier selects the fixed investment amount paid at registration.
type PackageTier uint8

const (
	TierNone PackageTier = iota
	Tier30
	Tier50
	Tier100
	Tier200
)

var tokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Tokens converts a whole-token amount into base units (18 decimals).
func Tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), tokenUnit)
}

// Amount returns the package price in base units, or nil for TierNone.
func (t PackageTier) Amount() *big.Int {
	switch t {
	case Tier30:
		return Tokens(30)
	case Tier50:
		return Tokens(50)
	case Tier100:
		return Tokens(100)
	case Tier200:
		return Tokens(200)
	default:
		return nil
	}
}

// Valid reports whether the tier is a purchasable package.
func (t PackageTier) Valid() bool {
	return t >= Tier30 && t <= Tier200
}

func (t PackageTier) String() string {
	switch t {
	case Tier30:
		return "package30"
	case Tier50:
		return "package50"
	case Tier100:
		return "package100"
	case Tier200:
		return "package200"
	default:
		return "none"
	}
}

// LeaderRank classifies a user for leader bonus eligibility.
type LeaderRank uint8

const (
	RankNone LeaderRank = iota
	RankShiningStar
	RankSilverStar
)

func (r LeaderRank) String() string {
	switch r {
	case RankShiningStar:
		return "shiningStar"
	case RankSilverStar:
		return "silverStar"
	default:
		return "none"
	}
}

// User is the per-participant ledger record. All amount fields are in token
// base units and monotonic where the compensation plan requires it.
type User struct {
	ID            uint64
	Sponsor       common.Address
	Tier          PackageTier
	TotalInvested *big.Int
	Withdrawable  *big.Int
	TotalEarnings *big.Int
	Capped        bool
	DirectCount   uint64
	TeamSize      uint64
	Rank          LeaderRank
	RegisteredAt  uint64
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.TotalInvested = cloneBigInt(u.TotalInvested)
	clone.Withdrawable = cloneBigInt(u.Withdrawable)
	clone.TotalEarnings = cloneBigInt(u.TotalEarnings)
	return &clone
}

// Node is a user's slot in the binary placement tree. Parent is the zero
// address only for the matrix root; empty child slots hold the zero address.
type Node struct {
	Parent common.Address
	Left   common.Address
	Right  common.Address
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	return &clone
}

// Pool identifies one of the fixed reserve accumulators.
type Pool uint8

const (
	PoolSponsor Pool = iota
	PoolLevel
	PoolUpline
	PoolLeader
	PoolGlobalHelp
	PoolLeftover
	poolCount
)

func (p Pool) String() string {
	switch p {
	case PoolSponsor:
		return "sponsor"
	case PoolLevel:
		return "level"
	case PoolUpline:
		return "upline"
	case PoolLeader:
		return "leader"
	case PoolGlobalHelp:
		return "globalHelp"
	case PoolLeftover:
		return "leftover"
	default:
		return "unknown"
	}
}

// PoolBalances is the fixed vector of reserve accumulators, indexed by Pool.
type PoolBalances [poolCount]*big.Int

// NewPoolBalances returns a zeroed vector.
func NewPoolBalances() *PoolBalances {
	var balances PoolBalances
	for i := range balances {
		balances[i] = big.NewInt(0)
	}
	return &balances
}

func (b *PoolBalances) Clone() *PoolBalances {
	if b == nil {
		return NewPoolBalances()
	}
	clone := NewPoolBalances()
	for i := range b {
		clone[i] = cloneBigInt(b[i])
	}
	return clone
}

// Add credits the pool accumulator in place.
func (b *PoolBalances) Add(p Pool, amount *big.Int) {
	if b == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	b[p] = new(big.Int).Add(b[p], amount)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
