package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNilState              = errors.New("token: state not configured")
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnauthorizedMint      = errors.New("token: caller is not the operator")
)

// ledgerState is the persistence the token ledger relies on. Balances and
// allowances share the surrounding state transaction, so token moves commit
// or revert together with the ledger mutation that triggered them.
type ledgerState interface {
	TokenBalance(addr common.Address) (*big.Int, error)
	SetTokenBalance(addr common.Address, amount *big.Int) error
	TokenAllowance(owner, spender common.Address) (*big.Int, error)
	SetTokenAllowance(owner, spender common.Address, amount *big.Int) error
	TokenTotalSupply() (*big.Int, error)
	SetTokenTotalSupply(supply *big.Int) error
}

// Ledger is an ERC20-style payment token held in ledger state: balances,
// allowances and an operator-gated mint.
type Ledger struct {
	state    ledgerState
	operator common.Address
}

// NewLedger creates a token ledger; the operator may mint.
func NewLedger(operator common.Address) *Ledger {
	return &Ledger{operator: operator}
}

// SetState wires the ledger to the persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

func (l *Ledger) BalanceOf(addr common.Address) (*big.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	return l.state.TokenBalance(addr)
}

func (l *Ledger) Allowance(owner, spender common.Address) (*big.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	return l.state.TokenAllowance(owner, spender)
}

func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	return l.state.TokenTotalSupply()
}

// Mint credits freshly issued tokens to an account. Operator only.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	if caller != l.operator {
		return ErrUnauthorizedMint
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.state.TokenBalance(to)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	supply, err := l.state.TokenTotalSupply()
	if err != nil {
		return err
	}
	return l.state.SetTokenTotalSupply(new(big.Int).Add(supply, amount))
}

// Approve sets the spender's allowance over the owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return l.state.SetTokenAllowance(owner, spender, amount)
}

// Transfer moves tokens between accounts.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	return l.move(from, to, amount)
}

// TransferFrom moves tokens on behalf of the owner, consuming allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance, err := l.state.TokenAllowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	return l.state.SetTokenAllowance(from, spender, new(big.Int).Sub(allowance, amount))
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := l.state.TokenBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	if err := l.state.SetTokenBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := l.state.TokenBalance(to)
	if err != nil {
		return err
	}
	return l.state.SetTokenBalance(to, new(big.Int).Add(toBalance, amount))
}
