package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func (m *Manager) TokenBalance(addr common.Address) (*big.Int, error) {
	balance := new(big.Int)
	found, err := m.kvGet(addrKey(tokenBalancePrefix, addr), balance)
	if err != nil {
		return nil, err
	}
	if !found {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (m *Manager) SetTokenBalance(addr common.Address, amount *big.Int) error {
	return m.kvPut(addrKey(tokenBalancePrefix, addr), amount)
}

func (m *Manager) TokenAllowance(owner, spender common.Address) (*big.Int, error) {
	allowance := new(big.Int)
	found, err := m.kvGet(pairKey(tokenAllowancePrefix, owner, spender), allowance)
	if err != nil {
		return nil, err
	}
	if !found {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

func (m *Manager) SetTokenAllowance(owner, spender common.Address, amount *big.Int) error {
	return m.kvPut(pairKey(tokenAllowancePrefix, owner, spender), amount)
}

func (m *Manager) TokenTotalSupply() (*big.Int, error) {
	supply := new(big.Int)
	found, err := m.kvGet(tokenSupplyKey, supply)
	if err != nil {
		return nil, err
	}
	if !found {
		return big.NewInt(0), nil
	}
	return supply, nil
}

func (m *Manager) SetTokenTotalSupply(supply *big.Int) error {
	return m.kvPut(tokenSupplyKey, supply)
}
