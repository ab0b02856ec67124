package blocks

import (
	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/types"
)

// ProcessEth1Data records block's eth1 vote and, once it commands a
// majority of the current voting period's votes, adopts it as
// state.Eth1Data.
func ProcessEth1Data(state *types.BeaconState, body *types.BeaconBlockBody) error {
	state.Eth1DataVotes = append(state.Eth1DataVotes, body.Eth1Data)

	count := 0
	for _, v := range state.Eth1DataVotes {
		if v.Equal(body.Eth1Data) {
			count++
		}
	}

	cfg := params.BeaconConfig()
	votingPeriodSlots := cfg.EpochsPerEth1VotingPeriod * cfg.SlotsPerEpoch
	if uint64(count)*2 > votingPeriodSlots {
		state.Eth1Data = body.Eth1Data
	}
	return nil
}

// Eth1Vote picks the eth1 data a proposer should put forward next,
// choosing the most-voted candidate among votesToConsider (data seen by
// the eth1 follow-distance window) that also appears in state's current
// voting-period tally; ties go to whichever candidate's first vote occurs
// earliest in state's voting-period tally. Falls back to the last
// considered candidate, or state's current Eth1Data if nothing is being
// considered.
func Eth1Vote(state *types.BeaconState, votesToConsider []*types.Eth1Data) *types.Eth1Data {
	if len(votesToConsider) == 0 {
		return state.Eth1Data
	}

	validIdx := make([]int, 0, len(state.Eth1DataVotes))
	for _, sv := range state.Eth1DataVotes {
		for j, cv := range votesToConsider {
			if sv.Equal(cv) {
				validIdx = append(validIdx, j)
				break
			}
		}
	}

	if len(validIdx) == 0 {
		return votesToConsider[len(votesToConsider)-1]
	}

	counts := make(map[int]int, len(votesToConsider))
	firstSeen := make(map[int]int, len(votesToConsider))
	for rank, j := range validIdx {
		counts[j]++
		if _, ok := firstSeen[j]; !ok {
			firstSeen[j] = rank
		}
	}

	best := -1
	for j, c := range counts {
		if best == -1 {
			best = j
			continue
		}
		if c > counts[best] || (c == counts[best] && firstSeen[j] < firstSeen[best]) {
			best = j
		}
	}
	return votesToConsider[best]
}
