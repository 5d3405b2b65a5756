package types

import "github.com/ethereum/go-ethereum/common"

// ProofResponseV1 is returned by GET /proof for a single address.
type ProofResponseV1 struct {
	Address string        `json:"address"`
	Balance *Balance      `json:"balance"`
	Proof   []common.Hash `json:"proof"`
	Root    common.Hash   `json:"root"`
}

// ClaimRequestV1 is the body of POST /claim. Any caller may submit a claim;
// tokens are always transferred to the proven address.
type ClaimRequestV1 struct {
	Address string        `json:"address"`
	Balance *Balance      `json:"balance"`
	Proof   []common.Hash `json:"proof"`
}

// ClaimResponseV1 is returned on a successful claim.
type ClaimResponseV1 struct {
	ReceiptID string   `json:"receipt_id"`
	Address   string   `json:"address"`
	Amount    *Balance `json:"amount"`
	Index     uint64   `json:"index"`
}
