package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkledrop/merkledrop-go/pkg/claims"
	"github.com/merkledrop/merkledrop-go/pkg/prover"
	"github.com/merkledrop/merkledrop-go/pkg/types"
)

// handleManifest serves the airdrop manifest.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.manifest)
}

// handleProof serves the entry and full proof for one address.
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addrParam := r.URL.Query().Get("address")
	if addrParam == "" {
		http.Error(w, "address query parameter is required", http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(addrParam) {
		http.Error(w, fmt.Sprintf("invalid address: %s", addrParam), http.StatusBadRequest)
		return
	}
	addr := common.HexToAddress(addrParam)

	entry, proof, err := s.prover.GetProof(r.Context(), addr)
	if err != nil {
		switch {
		case errors.Is(err, prover.ErrNotFound):
			http.Error(w, "no allocation for address", http.StatusNotFound)
		case errors.Is(err, prover.ErrShardNotFound):
			s.logger.Sugar().Errorw("Shard unavailable", "address", addrParam, "error", err)
			http.Error(w, "shard unavailable", http.StatusServiceUnavailable)
		default:
			s.logger.Sugar().Errorw("Proof retrieval failed", "address", addrParam, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, &types.ProofResponseV1{
		Address: types.NormalizeAddress(addr),
		Balance: entry.Balance,
		Proof:   proof,
		Root:    s.manifest.Root,
	})
}

// handleClaim verifies a proof and releases tokens exactly once.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		http.Error(w, "too many claim requests", http.StatusTooManyRequests)
		return
	}

	var req types.ClaimRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	if !common.IsHexAddress(req.Address) {
		http.Error(w, fmt.Sprintf("invalid address: %s", req.Address), http.StatusBadRequest)
		return
	}
	if req.Balance == nil {
		http.Error(w, "balance is required", http.StatusBadRequest)
		return
	}
	addr := common.HexToAddress(req.Address)

	receipt, err := s.distributor.Claim(addr, &req.Balance.Int, req.Proof)
	if err != nil {
		switch {
		case errors.Is(err, claims.ErrInvalidProof):
			http.Error(w, "invalid proof", http.StatusBadRequest)
		case errors.Is(err, claims.ErrAlreadyClaimed):
			http.Error(w, "already claimed", http.StatusConflict)
		case errors.Is(err, claims.ErrInsufficientReserve):
			s.logger.Sugar().Errorw("Claim rejected, reserve exhausted", "address", req.Address, "amount", req.Balance.String())
			http.Error(w, "insufficient reserve", http.StatusServiceUnavailable)
		default:
			s.logger.Sugar().Errorw("Claim failed", "address", req.Address, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, &types.ClaimResponseV1{
		ReceiptID: receipt.ID,
		Address:   types.NormalizeAddress(receipt.Address),
		Amount:    types.NewBalance(receipt.Amount),
		Index:     receipt.Index,
	})
}

// handleHealth reports claim store health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.distributor.HealthCheck(); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
