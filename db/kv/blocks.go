package kv

import (
	"context"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/encoding/ssz"
)

// SaveBlock persists signed under its own hash-tree root and records it
// in the slot and parent-root indices that child enumeration and
// fork-choice replay read from.
func (s *Store) SaveBlock(ctx context.Context, signed *types.SignedBeaconBlock) error {
	_, span := trace.StartSpan(ctx, "db.kv.SaveBlock")
	defer span.End()

	root := [32]byte(signed.Block.HashTreeRoot())
	enc, err := signed.MarshalSSZ()
	if err != nil {
		return errors.Wrap(err, "could not marshal block")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		blocks := tx.Bucket(blocksBucket)
		if existing := blocks.Get(root[:]); existing != nil {
			return nil
		}
		if err := blocks.Put(root[:], enc); err != nil {
			return err
		}

		slotIdx := tx.Bucket(blockSlotIndicesBucket)
		slotKey := append(ssz.MarshalUint64(signed.Block.Slot), root[:]...)
		if err := slotIdx.Put(slotKey, root[:]); err != nil {
			return err
		}

		parentIdx := tx.Bucket(blockParentRootIndicesBucket)
		parentKey := append(append([]byte{}, signed.Block.ParentRoot[:]...), root[:]...)
		return parentIdx.Put(parentKey, root[:])
	})
}

// Block returns the block stored under root, or nil if none is found.
func (s *Store) Block(ctx context.Context, root [32]byte) (*types.SignedBeaconBlock, error) {
	_, span := trace.StartSpan(ctx, "db.kv.Block")
	defer span.End()

	if cached, ok := s.blockCache.Get(root[:]); ok {
		return cached.(*types.SignedBeaconBlock), nil
	}

	var block *types.SignedBeaconBlock
	err := s.db.View(func(tx *bbolt.Tx) error {
		enc := tx.Bucket(blocksBucket).Get(root[:])
		if enc == nil {
			return nil
		}
		block = &types.SignedBeaconBlock{}
		return block.UnmarshalSSZ(enc)
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not unmarshal block")
	}
	if block != nil {
		s.blockCache.Set(root[:], block, 1)
	}
	return block, nil
}

// HasBlock reports whether root names a stored block.
func (s *Store) HasBlock(ctx context.Context, root [32]byte) bool {
	block, err := s.Block(ctx, root)
	return err == nil && block != nil
}

// ChildrenOf returns the roots of every stored block whose ParentRoot is
// parentRoot, via the parent-root index rather than a full table scan.
func (s *Store) ChildrenOf(ctx context.Context, parentRoot [32]byte) ([][32]byte, error) {
	_, span := trace.StartSpan(ctx, "db.kv.ChildrenOf")
	defer span.End()

	var children [][32]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(blockParentRootIndicesBucket).Cursor()
		prefix := parentRoot[:]
		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			var root [32]byte
			copy(root[:], v)
			children = append(children, root)
		}
		return nil
	})
	return children, err
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

// SaveHeadBlockRoot records root as the chain's current head.
func (s *Store) SaveHeadBlockRoot(ctx context.Context, root [32]byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chainMetadataBucket).Put(headBlockRootKey, root[:])
	})
}

// HeadBlockRoot returns the chain's recorded head root, or ok=false if
// none has been saved yet.
func (s *Store) HeadBlockRoot(ctx context.Context) (root [32]byte, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		enc := tx.Bucket(chainMetadataBucket).Get(headBlockRootKey)
		if enc == nil {
			return nil
		}
		ok = true
		copy(root[:], enc)
		return nil
	})
	return root, ok, err
}

// SaveGenesisBlockRoot records root as the chain's genesis block.
func (s *Store) SaveGenesisBlockRoot(ctx context.Context, root [32]byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chainMetadataBucket).Put(genesisBlockRootKey, root[:])
	})
}

// SaveJustifiedCheckpoint persists the current justified checkpoint.
func (s *Store) SaveJustifiedCheckpoint(ctx context.Context, cp *types.Checkpoint) error {
	return s.saveCheckpoint(justifiedCheckpointKey, cp)
}

// SaveFinalizedCheckpoint persists the current finalized checkpoint and
// walks the finalized block's ancestry, recording each ancestor into the
// finalized-block-roots index up to the last block already indexed or
// genesis.
func (s *Store) SaveFinalizedCheckpoint(ctx context.Context, cp *types.Checkpoint) error {
	if err := s.saveCheckpoint(finalizedCheckpointKey, cp); err != nil {
		return err
	}
	if cp.Root == ([32]byte{}) {
		// The genesis/unknown sentinel names no stored block to walk from.
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(finalizedBlockRootsIndexBucket)
		blocks := tx.Bucket(blocksBucket)
		genesisRoot := tx.Bucket(chainMetadataBucket).Get(genesisBlockRootKey)

		root := append([]byte{}, cp.Root[:]...)
		for {
			if genesisRoot != nil && string(root) == string(genesisRoot) {
				return nil
			}
			if enc := idx.Get(root); enc != nil {
				return nil
			}
			blockEnc := blocks.Get(root)
			if blockEnc == nil {
				return errors.Wrapf(errkind.ErrStorageFailure, "finalized ancestry walk: missing block %x", root)
			}
			block := &types.SignedBeaconBlock{}
			if err := block.UnmarshalSSZ(blockEnc); err != nil {
				return errors.Wrap(err, "could not unmarshal ancestor block")
			}
			if err := idx.Put(root, []byte{1}); err != nil {
				return err
			}
			root = append([]byte{}, block.Block.ParentRoot[:]...)
		}
	})
}

func (s *Store) saveCheckpoint(key []byte, cp *types.Checkpoint) error {
	enc, err := cp.MarshalSSZ()
	if err != nil {
		return errors.Wrap(err, "could not marshal checkpoint")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chainMetadataBucket).Put(key, enc)
	})
}

// FinalizedCheckpoint returns the last checkpoint saved via
// SaveFinalizedCheckpoint, or nil if none has been saved yet.
func (s *Store) FinalizedCheckpoint(ctx context.Context) (*types.Checkpoint, error) {
	return s.loadCheckpoint(finalizedCheckpointKey)
}

// JustifiedCheckpoint returns the last checkpoint saved via
// SaveJustifiedCheckpoint, or nil if none has been saved yet.
func (s *Store) JustifiedCheckpoint(ctx context.Context) (*types.Checkpoint, error) {
	return s.loadCheckpoint(justifiedCheckpointKey)
}

func (s *Store) loadCheckpoint(key []byte) (*types.Checkpoint, error) {
	var cp *types.Checkpoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		enc := tx.Bucket(chainMetadataBucket).Get(key)
		if enc == nil {
			return nil
		}
		cp = &types.Checkpoint{}
		return cp.UnmarshalSSZ(enc)
	})
	return cp, err
}
