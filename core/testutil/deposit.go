package testutil

import (
	"encoding/binary"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
	"github.com/sigmaprotocol/beacon-core/shared/trieutil"
)

// DepositBatch builds count deposits for brand-new, sequentially-keyed
// validators (pubkey = 8-byte index offset by seedOffset), each proven
// against a single incremental trie, and returns the deposits alongside
// the Eth1Data a state must carry for ProcessDeposits to accept them.
func DepositBatch(count int, seedOffset uint64) ([]*types.Deposit, *types.Eth1Data) {
	cfg := params.BeaconConfig()
	depth := int(cfg.DepositContractTreeDepth)

	trie, err := trieutil.NewTrie(depth)
	if err != nil {
		panic(err)
	}

	datas := make([]*types.DepositData, count)
	for i := 0; i < count; i++ {
		var pubkey [48]byte
		binary.LittleEndian.PutUint64(pubkey[:8], seedOffset+uint64(i))
		var withdrawalCreds [32]byte
		withdrawalCreds[0] = 0x01

		datas[i] = &types.DepositData{
			Pubkey:                pubkey,
			WithdrawalCredentials: withdrawalCreds,
			Amount:                cfg.MaxEffectiveBalance,
		}

		buf, err := datas[i].MarshalSSZ()
		if err != nil {
			panic(err)
		}
		leaf := hashutil.Hash(buf)
		if err := trie.InsertIntoTrie(leaf[:], i); err != nil {
			panic(err)
		}
	}

	// ProcessDeposits verifies against a depth+1 branch: the extra level
	// mixes the deposit count into the trie root, mirroring the deposit
	// contract's own get_deposit_root().
	var mixin [32]byte
	binary.LittleEndian.PutUint64(mixin[:8], uint64(count))

	deposits := make([]*types.Deposit, count)
	for i := 0; i < count; i++ {
		proofBytes, err := trie.MerkleProof(i)
		if err != nil {
			panic(err)
		}
		proof := make([][32]byte, len(proofBytes)+1)
		for j, p := range proofBytes {
			var node [32]byte
			copy(node[:], p)
			proof[j] = node
		}
		proof[len(proofBytes)] = mixin
		deposits[i] = &types.Deposit{Data: datas[i], Proof: proof}
	}

	eth1Data := &types.Eth1Data{
		DepositRoot:  trie.HashTreeRoot(),
		DepositCount: uint64(count),
	}
	return deposits, eth1Data
}
