package merkle

// Tree is a binary merkle tree with sorted-pair hashing.
// The two children of every internal node are concatenated in ascending
// byte order before hashing, so proofs carry no left/right direction bits.
type Tree struct {
	// Leaves contains the leaf hashes in build order
	Leaves [][32]byte

	// levels stores all tree levels for proof generation
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}
