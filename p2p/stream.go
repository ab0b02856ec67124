// Package p2p defines the wire boundary the block-processor pipeline
// consumes: an opaque bidirectional stream of blocks and attestations.
// No peer discovery, gossip, or scoring lives here — transports plug in
// behind BlockAttestationStream, and the in-process ChannelStream is
// the implementation the binary's local block-feed and the tests use.
package p2p

import (
	"context"
	"sync"

	"github.com/sigmaprotocol/beacon-core/core/types"
)

// BlockAttestationStream is the two-channel shape the pipeline reads:
// inbound signed blocks and inbound attestations, each delivered in
// arrival order. A closed channel means the transport has shut down.
type BlockAttestationStream interface {
	Blocks() <-chan *types.SignedBeaconBlock
	Attestations() <-chan *types.Attestation
}

// ChannelStream is a buffered in-process BlockAttestationStream fed by
// whatever is standing in for the network (a directory poll, a
// simulator, a test).
type ChannelStream struct {
	blocks chan *types.SignedBeaconBlock
	atts   chan *types.Attestation

	closeOnce sync.Once
}

var _ BlockAttestationStream = (*ChannelStream)(nil)

// NewChannelStream returns a stream whose two channels buffer up to
// buffer messages each before senders block.
func NewChannelStream(buffer int) *ChannelStream {
	return &ChannelStream{
		blocks: make(chan *types.SignedBeaconBlock, buffer),
		atts:   make(chan *types.Attestation, buffer),
	}
}

// Blocks returns the inbound signed-block channel.
func (s *ChannelStream) Blocks() <-chan *types.SignedBeaconBlock {
	return s.blocks
}

// Attestations returns the inbound attestation channel.
func (s *ChannelStream) Attestations() <-chan *types.Attestation {
	return s.atts
}

// SendBlock delivers signed to the stream's consumer, blocking while
// the buffer is full. Reports false if ctx ends before delivery.
func (s *ChannelStream) SendBlock(ctx context.Context, signed *types.SignedBeaconBlock) bool {
	select {
	case s.blocks <- signed:
		return true
	case <-ctx.Done():
		return false
	}
}

// SendAttestation delivers att to the stream's consumer, blocking while
// the buffer is full. Reports false if ctx ends before delivery.
func (s *ChannelStream) SendAttestation(ctx context.Context, att *types.Attestation) bool {
	select {
	case s.atts <- att:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close shuts both channels down. Safe to call more than once; senders
// must not be used afterward.
func (s *ChannelStream) Close() {
	s.closeOnce.Do(func() {
		close(s.blocks)
		close(s.atts)
	})
}
