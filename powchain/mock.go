package powchain

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/shared/hashutil"
	"github.com/sigmaprotocol/beacon-core/shared/trieutil"
)

// MockFetcher is an in-memory DepositFetcher: deposits are appended by
// the test or simulator driving it, and proofs are generated from the
// same incremental trie the deposit contract maintains, so everything
// it serves passes the deposit stage's branch verification unchanged.
type MockFetcher struct {
	mu    sync.RWMutex
	trie  *trieutil.MerkleTrie
	datas []*types.DepositData
}

var _ DepositFetcher = (*MockFetcher)(nil)

// NewMockFetcher returns an empty mock follower at the configured
// contract tree depth.
func NewMockFetcher(treeDepth uint64) (*MockFetcher, error) {
	trie, err := trieutil.NewTrie(int(treeDepth))
	if err != nil {
		return nil, errors.Wrap(err, "could not build deposit trie")
	}
	return &MockFetcher{trie: trie}, nil
}

// Insert appends data as the next contract deposit.
func (m *MockFetcher) Insert(data *types.DepositData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, err := data.MarshalSSZ()
	if err != nil {
		return errors.Wrap(err, "could not marshal deposit data")
	}
	leaf := hashutil.Hash(buf)
	if err := m.trie.InsertIntoTrie(leaf[:], len(m.datas)); err != nil {
		return errors.Wrap(err, "could not insert deposit leaf")
	}
	m.datas = append(m.datas, data)
	return nil
}

// Eth1Data reports the mock contract's current root and count.
func (m *MockFetcher) Eth1Data(_ context.Context) (*types.Eth1Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &types.Eth1Data{
		DepositRoot:  m.trie.HashTreeRoot(),
		DepositCount: uint64(len(m.datas)),
	}, nil
}

// Deposits serves deposits [start, start+n) with proofs against the
// current root, including the deposit-count mixin level the depth+1
// branch verification walks through.
func (m *MockFetcher) Deposits(_ context.Context, start, n uint64) ([]*types.Deposit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if start+n > uint64(len(m.datas)) {
		return nil, errors.Wrapf(ErrOutOfRange, "[%d, %d) of %d observed", start, start+n, len(m.datas))
	}

	mixin := m.countMixin()
	deposits := make([]*types.Deposit, 0, n)
	for i := start; i < start+n; i++ {
		proofBytes, err := m.trie.MerkleProof(int(i))
		if err != nil {
			return nil, errors.Wrapf(err, "could not prove deposit %d", i)
		}
		proof := make([][32]byte, len(proofBytes)+1)
		for j, p := range proofBytes {
			copy(proof[j][:], p)
		}
		proof[len(proofBytes)] = mixin
		deposits = append(deposits, &types.Deposit{Data: m.datas[i], Proof: proof})
	}
	return deposits, nil
}

func (m *MockFetcher) countMixin() [32]byte {
	var mixin [32]byte
	binary.LittleEndian.PutUint64(mixin[:8], uint64(len(m.datas)))
	return mixin
}
