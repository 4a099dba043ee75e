package state

import (
	"github.com/ethereum/go-ethereum/common"

	"orphifund/native/matrix"
)

// MatrixUser loads a user record. The boolean reports existence.
func (m *Manager) MatrixUser(addr common.Address) (*matrix.User, bool, error) {
	user := new(matrix.User)
	found, err := m.kvGet(addrKey(matrixUserPrefix, addr), user)
	if err != nil || !found {
		return nil, false, err
	}
	return user, true, nil
}

func (m *Manager) PutMatrixUser(addr common.Address, user *matrix.User) error {
	return m.kvPut(addrKey(matrixUserPrefix, addr), user)
}

func (m *Manager) MatrixNode(addr common.Address) (*matrix.Node, bool, error) {
	node := new(matrix.Node)
	found, err := m.kvGet(addrKey(matrixNodePrefix, addr), node)
	if err != nil || !found {
		return nil, false, err
	}
	return node, true, nil
}

func (m *Manager) PutMatrixNode(addr common.Address, node *matrix.Node) error {
	return m.kvPut(addrKey(matrixNodePrefix, addr), node)
}

// MatrixMembers returns every registered address in registration order. The
// matrix root is always the first element.
func (m *Manager) MatrixMembers() ([]common.Address, error) {
	var members []common.Address
	if _, err := m.kvGet(matrixMembersKey, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) AppendMatrixMember(addr common.Address) error {
	members, err := m.MatrixMembers()
	if err != nil {
		return err
	}
	return m.kvPut(matrixMembersKey, append(members, addr))
}

func (m *Manager) MatrixNextID() (uint64, error) {
	return m.kvGetUint64(matrixNextIDKey)
}

func (m *Manager) SetMatrixNextID(id uint64) error {
	return m.kvPut(matrixNextIDKey, id)
}

func (m *Manager) MatrixPools() (*matrix.PoolBalances, error) {
	pools := matrix.NewPoolBalances()
	if _, err := m.kvGet(matrixPoolsKey, pools); err != nil {
		return nil, err
	}
	return pools, nil
}

func (m *Manager) PutMatrixPools(pools *matrix.PoolBalances) error {
	return m.kvPut(matrixPoolsKey, pools)
}

func (m *Manager) MatrixLastDistribution(pool matrix.Pool) (uint64, error) {
	return m.kvGetUint64(poolKey(matrixDistPrefix, uint8(pool)))
}

func (m *Manager) SetMatrixLastDistribution(pool matrix.Pool, ts uint64) error {
	return m.kvPut(poolKey(matrixDistPrefix, uint8(pool)), ts)
}

func (m *Manager) MatrixPaused() (bool, error) {
	return m.kvGetBool(matrixPausedKey)
}

func (m *Manager) SetMatrixPaused(paused bool) error {
	return m.kvPut(matrixPausedKey, paused)
}

func (m *Manager) MatrixLocked() (bool, error) {
	return m.kvGetBool(matrixLockedKey)
}

func (m *Manager) SetMatrixLocked(locked bool) error {
	return m.kvPut(matrixLockedKey, locked)
}
