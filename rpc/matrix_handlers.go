package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"orphifund/native/matrix"
	"orphifund/observability"
)

type UserInfoResult struct {
	ID            uint64   `json:"id"`
	Sponsor       string   `json:"sponsor"`
	PackageTier   uint8    `json:"packageTier"`
	TotalInvested *big.Int `json:"totalInvested"`
	Withdrawable  *big.Int `json:"withdrawableAmount"`
	TotalEarnings *big.Int `json:"totalEarnings"`
	IsCapped      bool     `json:"isCapped"`
	DirectCount   uint64   `json:"directSponsorsCount"`
	TeamSize      uint64   `json:"teamSize"`
	LeaderRank    uint8    `json:"leaderRank"`
	RegisteredAt  uint64   `json:"registeredAt"`
}

type MatrixInfoResult struct {
	Parent     string `json:"parent"`
	LeftChild  string `json:"leftChild"`
	RightChild string `json:"rightChild"`
}

type PoolBalancesResult struct {
	Sponsor    *big.Int `json:"sponsor"`
	Level      *big.Int `json:"level"`
	Upline     *big.Int `json:"upline"`
	Leader     *big.Int `json:"leader"`
	GlobalHelp *big.Int `json:"globalHelp"`
	Leftover   *big.Int `json:"leftover"`
}

type addressParam struct {
	Address string `json:"address"`
}

type registerParams struct {
	From    string `json:"from"`
	Sponsor string `json:"sponsor"`
	Tier    uint8  `json:"tier"`
}

type withdrawParams struct {
	From string `json:"from"`
}

type approveParams struct {
	From    string   `json:"from"`
	Spender string   `json:"spender,omitempty"`
	Amount  *big.Int `json:"amount"`
}

type mintParams struct {
	To     string   `json:"to"`
	Amount *big.Int `json:"amount"`
}

type amountParams struct {
	Amount *big.Int `json:"amount"`
}

type distributeParams struct {
	Force bool `json:"force,omitempty"`
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single parameter object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object"}
	}
	return nil
}

func parseAddress(raw string) (common.Address, *RPCError) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, &RPCError{Code: codeInvalidParams, Message: "invalid address"}
	}
	return common.HexToAddress(raw), nil
}

func (s *Server) handleGetUserInfo(w http.ResponseWriter, req *RPCRequest) *RPCError {
	var params addressParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return rpcErr
	}
	user, err := s.engine.GetUserInfo(addr)
	if err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, &UserInfoResult{
		ID:            user.ID,
		Sponsor:       user.Sponsor.Hex(),
		PackageTier:   uint8(user.Tier),
		TotalInvested: user.TotalInvested,
		Withdrawable:  user.Withdrawable,
		TotalEarnings: user.TotalEarnings,
		IsCapped:      user.Capped,
		DirectCount:   user.DirectCount,
		TeamSize:      user.TeamSize,
		LeaderRank:    uint8(user.Rank),
		RegisteredAt:  user.RegisteredAt,
	})
	return nil
}

func (s *Server) handleGetMatrixInfo(w http.ResponseWriter, req *RPCRequest) *RPCError {
	var params addressParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return rpcErr
	}
	node, err := s.engine.GetMatrixInfo(addr)
	if err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, &MatrixInfoResult{
		Parent:     node.Parent.Hex(),
		LeftChild:  node.Left.Hex(),
		RightChild: node.Right.Hex(),
	})
	return nil
}

func (s *Server) handleGetPoolBalances(w http.ResponseWriter, req *RPCRequest) *RPCError {
	pools, err := s.engine.GetPoolBalances()
	if err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, &PoolBalancesResult{
		Sponsor:    pools[matrix.PoolSponsor],
		Level:      pools[matrix.PoolLevel],
		Upline:     pools[matrix.PoolUpline],
		Leader:     pools[matrix.PoolLeader],
		GlobalHelp: pools[matrix.PoolGlobalHelp],
		Leftover:   pools[matrix.PoolLeftover],
	})
	return nil
}

func (s *Server) handleGetPlanParams(w http.ResponseWriter, req *RPCRequest) *RPCError {
	params := s.engine.Params()
	writeResult(w, req.ID, map[string]interface{}{
		"sponsorBps":    params.SponsorBps,
		"levelBps":      params.LevelBps,
		"uplineBps":     params.UplineBps,
		"uplineDepth":   params.UplineDepth,
		"leaderBps":     params.LeaderBps,
		"globalHelpBps": params.GlobalHelpBps,
		"withdrawTiers": params.WithdrawTiers,
	})
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, req *RPCRequest) *RPCError {
	var params registerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	from, rpcErr := parseAddress(params.From)
	if rpcErr != nil {
		return rpcErr
	}
	sponsor, rpcErr := parseAddress(params.Sponsor)
	if rpcErr != nil {
		return rpcErr
	}
	tier := matrix.PackageTier(params.Tier)
	if err := s.engine.Register(from, sponsor, tier); err != nil {
		return engineError(err)
	}
	observability.Ledger().Registrations.WithLabelValues(tier.String()).Inc()
	writeResult(w, req.ID, map[string]bool{"registered": true})
	return nil
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) *RPCError {
	var params withdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	from, rpcErr := parseAddress(params.From)
	if rpcErr != nil {
		return rpcErr
	}
	if err := s.engine.Withdraw(from); err != nil {
		return engineError(err)
	}
	observability.Ledger().Withdrawals.Inc()
	writeResult(w, req.ID, map[string]bool{"withdrawn": true})
	return nil
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, req *RPCRequest) *RPCError {
	var params approveParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	from, rpcErr := parseAddress(params.From)
	if rpcErr != nil {
		return rpcErr
	}
	spender := s.engine.ModuleAddress()
	if params.Spender != "" {
		if spender, rpcErr = parseAddress(params.Spender); rpcErr != nil {
			return rpcErr
		}
	}
	if err := s.engine.WithTx(func() error {
		return s.token.Approve(from, spender, params.Amount)
	}); err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, map[string]bool{"approved": true})
	return nil
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, req *RPCRequest) *RPCError {
	var params addressParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return rpcErr
	}
	balance, err := s.token.BalanceOf(addr)
	if err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, map[string]*big.Int{"balance": balance})
	return nil
}

// adminToggle covers the owner switches that take no parameters.
func (s *Server) adminToggle(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func(common.Address) error) *RPCError {
	if err := s.auth.Authorize(r); err != nil {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	if err := fn(s.owner); err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return nil
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func(common.Address, bool) error, pool matrix.Pool) *RPCError {
	if err := s.auth.Authorize(r); err != nil {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	var params distributeParams
	if len(req.Params) == 1 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return rpcErr
		}
	}
	if err := fn(s.owner, params.Force); err != nil {
		return engineError(err)
	}
	observability.Ledger().Distributions.WithLabelValues(pool.String()).Inc()
	writeResult(w, req.ID, map[string]bool{"distributed": true})
	return nil
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) *RPCError {
	if err := s.auth.Authorize(r); err != nil {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	var params amountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	if err := s.engine.EmergencyWithdraw(s.owner, params.Amount); err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, map[string]bool{"swept": true})
	return nil
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) *RPCError {
	if err := s.auth.Authorize(r); err != nil {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	var params mintParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return rpcErr
	}
	to, rpcErr := parseAddress(params.To)
	if rpcErr != nil {
		return rpcErr
	}
	if err := s.engine.WithTx(func() error {
		return s.token.Mint(s.owner, to, params.Amount)
	}); err != nil {
		return engineError(err)
	}
	writeResult(w, req.ID, map[string]bool{"minted": true})
	return nil
}
