package state

import "github.com/ethereum/go-ethereum/common"

var (
	matrixUserPrefix = []byte("matrix-user:")
	matrixNodePrefix = []byte("matrix-node:")
	matrixMembersKey = []byte("matrix-members")
	matrixNextIDKey  = []byte("matrix-next-id")
	matrixPoolsKey   = []byte("matrix-pools")
	matrixDistPrefix = []byte("matrix-dist:")
	matrixPausedKey  = []byte("matrix-paused")
	matrixLockedKey  = []byte("matrix-locked")

	tokenBalancePrefix   = []byte("token-balance:")
	tokenAllowancePrefix = []byte("token-allowance:")
	tokenSupplyKey       = []byte("token-supply")
)

func addrKey(prefix []byte, addr common.Address) []byte {
	key := make([]byte, len(prefix)+common.AddressLength)
	copy(key, prefix)
	copy(key[len(prefix):], addr.Bytes())
	return key
}

func pairKey(prefix []byte, a, b common.Address) []byte {
	key := make([]byte, len(prefix)+2*common.AddressLength)
	copy(key, prefix)
	copy(key[len(prefix):], a.Bytes())
	copy(key[len(prefix)+common.AddressLength:], b.Bytes())
	return key
}

func poolKey(prefix []byte, pool uint8) []byte {
	key := make([]byte, len(prefix)+1)
	copy(key, prefix)
	key[len(prefix)] = pool
	return key
}
