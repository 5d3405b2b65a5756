package merkle

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BuildTree creates a binary merkle tree over the given leaf hashes.
// Callers are responsible for ordering the leaves deterministically;
// the tree preserves the order it is given.
//
// The tree uses keccak256 with sorted-pair hashing for Solidity
// compatibility. If a level has an odd number of nodes, the last node is
// promoted to the next level unchanged and contributes no proof element.
func BuildTree(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty leaf list")
	}

	// Build tree levels bottom-up
	levels := make([][][32]byte, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			if i+1 < len(currentLevel) {
				nextLevel = append(nextLevel, HashPair(currentLevel[i], currentLevel[i+1]))
			} else {
				// Odd node out: promote unchanged
				nextLevel = append(nextLevel, currentLevel[i])
			}
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &Tree{
		Leaves: leaves,
		levels: levels,
	}, nil
}

// Root returns the merkle root.
func (t *Tree) Root() [32]byte {
	return t.levels[len(t.levels)-1][0]
}

// GenerateProof creates a merkle proof for the leaf at the given index.
// The proof is the sequence of sibling hashes from the leaf up to the root;
// promoted nodes have no sibling and are skipped.
func (t *Tree) GenerateProof(leafIndex int) ([][32]byte, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
	}

	proof := make([][32]byte, 0, len(t.levels)-1)
	index := leafIndex

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		siblingIndex := index ^ 1
		if siblingIndex < len(currentLevel) {
			proof = append(proof, currentLevel[siblingIndex])
		}

		index = index / 2
	}

	return proof, nil
}

// FoldProof recomputes the root from a leaf hash and its proof, and
// simultaneously reconstructs the leaf's positional index: the running
// index doubles at each step and gains 1 whenever the sibling sorts before
// the accumulator (the sibling was the left child). The index is what the
// claim bitmap is keyed by.
func FoldProof(leaf [32]byte, proof [][32]byte) (root [32]byte, index uint64) {
	acc := leaf
	for _, sibling := range proof {
		index *= 2
		if bytes.Compare(acc[:], sibling[:]) < 0 {
			acc = hashConcat(acc, sibling)
		} else {
			acc = hashConcat(sibling, acc)
			index++
		}
	}
	return acc, index
}

// VerifyProof checks a proof against an expected root and returns the
// reconstructed leaf index on success.
func VerifyProof(leaf [32]byte, proof [][32]byte, root [32]byte) (uint64, bool) {
	computed, index := FoldProof(leaf, proof)
	return index, computed == root
}

// HashLeaf computes the leaf hash for one allocation:
// keccak256(address (20 bytes) || balance (32 bytes, big-endian)).
// This matches abi.encodePacked(address, uint256) on the contract side.
func HashLeaf(addr common.Address, balance *big.Int) [32]byte {
	data := make([]byte, 0, 20+32)
	data = append(data, addr.Bytes()...)
	data = append(data, common.LeftPadBytes(balance.Bytes(), 32)...)

	hash := crypto.Keccak256Hash(data)
	return [32]byte(hash)
}

// HashPair computes keccak256 of two nodes concatenated in ascending
// byte order. Implementers on both sides of the wire must use the exact
// same rule or proofs will not interoperate.
func HashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return hashConcat(a, b)
	}
	return hashConcat(b, a)
}

func hashConcat(left, right [32]byte) [32]byte {
	data := make([]byte, 64)
	copy(data[0:32], left[:])
	copy(data[32:64], right[:])

	hash := crypto.Keccak256Hash(data)
	return [32]byte(hash)
}
