package hashutil

import (
	"testing"
)

func TestMerkleRoot(t *testing.T) {
	valueSet := [][32]byte{
		{'a'},
		{'b'},
		{'c'},
		{'d'},
	}

	leftNode := Hash(append(append([]byte{}, valueSet[0][:]...), valueSet[1][:]...))
	rightNode := Hash(append(append([]byte{}, valueSet[2][:]...), valueSet[3][:]...))
	expectedRoot := Hash(append(append([]byte{}, leftNode[:]...), rightNode[:]...))

	if expectedRoot != MerkleRoot(valueSet) {
		t.Errorf("Expected Merkle root and computed merkle root are not equal %#x , %#x", expectedRoot, MerkleRoot(valueSet))
	}
}

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("abc"))
	b := Hash([]byte("abc"))
	if a != b {
		t.Errorf("Hash is not deterministic")
	}
}
