// Command beacon-core runs the block-processor pipeline against a
// genesis state and block loaded from disk, driven by a wall-clock slot
// ticker. It has no P2P transport or RPC surface of its own — those are
// opaque collaborators per the design this binary implements; blocks
// arrive by being dropped, SSZ-encoded, into --blocks-dir.
package main

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sigmaprotocol/beacon-core/config/params"
	"github.com/sigmaprotocol/beacon-core/core/errkind"
	"github.com/sigmaprotocol/beacon-core/core/pipeline"
	"github.com/sigmaprotocol/beacon-core/core/types"
	"github.com/sigmaprotocol/beacon-core/db/kv"
	"github.com/sigmaprotocol/beacon-core/p2p"
	"github.com/sigmaprotocol/beacon-core/shared/logutil"
	"github.com/sigmaprotocol/beacon-core/shared/prometheus"
	"github.com/sigmaprotocol/beacon-core/shared/slotutil"
)

// Exit codes, per the pipeline driver's external interface: 0 normal,
// 2 irrecoverable state-transition failure, 3 storage corruption, 4
// configuration error.
const (
	exitOK               = 0
	exitTransitionFailed = 2
	exitStorageFailure   = 3
	exitConfigError      = 4
)

var log = logrus.WithField("prefix", "main")

func main() {
	app := cli.NewApp()
	app.Name = "beacon-core"
	app.Usage = "runs the beacon-chain consensus state machine against a genesis checkpoint"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "datadir", Value: "./beacon-core-data", Usage: "directory for chain storage"},
		&cli.StringFlag{Name: "genesis-state", Required: true, Usage: "path to an SSZ-encoded genesis BeaconState"},
		&cli.StringFlag{Name: "genesis-block", Required: true, Usage: "path to an SSZ-encoded genesis SignedBeaconBlock"},
		&cli.StringFlag{Name: "network-config", Usage: "path to a YAML file overriding mainnet config constants"},
		&cli.BoolFlag{Name: "minimal-config", Usage: "use the minimal (small-committee) preset instead of mainnet"},
		&cli.BoolFlag{Name: "bls-verify", Value: true, Usage: "verify BLS signatures during state transition"},
		&cli.BoolFlag{Name: "bls-verify-proof-of-possession", Value: true, Usage: "verify withdrawal-key proof of possession on new deposits"},
		&cli.StringFlag{Name: "blocks-dir", Usage: "directory polled for incoming SSZ-encoded signed blocks"},
		&cli.StringFlag{Name: "log-file", Usage: "also write logs to this file"},
		&cli.StringFlag{Name: "metrics-address", Value: ":9090", Usage: "address to serve /metrics, /healthz, /goroutinez on"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("beacon-core exited with error")
		os.Exit(exitConfigError)
	}
}

func run(c *cli.Context) error {
	if logFile := c.String("log-file"); logFile != "" {
		if err := logutil.ConfigurePersistentLogging(logFile); err != nil {
			log.WithError(err).Error("could not configure persistent logging")
			os.Exit(exitConfigError)
		}
	}

	if err := configureParams(c); err != nil {
		log.WithError(err).Error("configuration error")
		os.Exit(exitConfigError)
	}

	genesisState, genesisBlock, err := loadGenesis(c.String("genesis-state"), c.String("genesis-block"))
	if err != nil {
		log.WithError(err).Error("could not load genesis")
		os.Exit(exitConfigError)
	}

	store, err := kv.NewKVStore(c.String("datadir"))
	if err != nil {
		log.WithError(err).Error("could not open chain storage")
		os.Exit(exitStorageFailure)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("could not close chain storage")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.SaveBlock(ctx, genesisBlock); err != nil {
		log.WithError(err).Error("could not persist genesis block")
		os.Exit(exitStorageFailure)
	}
	genesisRoot := [32]byte(genesisBlock.Block.HashTreeRoot())
	if err := store.SaveGenesisBlockRoot(ctx, genesisRoot); err != nil {
		log.WithError(err).Error("could not persist genesis root")
		os.Exit(exitStorageFailure)
	}

	p := pipeline.New(genesisBlock, genesisState, store)

	metricsSvc := prometheus.NewService(c.String("metrics-address"), map[string]prometheus.StatusChecker{
		"chain-storage": func() error { return nil },
	})
	metricsSvc.Start()
	defer func() {
		if err := metricsSvc.Stop(); err != nil {
			log.WithError(err).Warn("could not stop metrics service")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()

	genesisTime := time.Unix(int64(genesisState.GenesisTime), 0)
	go logutil.CountdownToGenesis(genesisTime, 30)

	ticker := slotutil.NewSlotTicker(genesisTime, params.BeaconConfig().SecondsPerSlot)
	defer ticker.Done()

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeObservedStates(ctx, p, store)
	}()

	// Inbound blocks reach the pipeline through the stream boundary;
	// the --blocks-dir poll loop is the transport standing behind it.
	stream := p2p.NewChannelStream(64)
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Consume(ctx, stream)
	}()

	if blocksDir := c.String("blocks-dir"); blocksDir != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watchBlocksDir(ctx, blocksDir, stream)
		}()
	}

	for {
		select {
		case slot := <-ticker.C():
			p.Tick(slot)
		case err := <-p.Fatal():
			log.WithError(err).Error("pipeline hit an unrecoverable error")
			cancel()
			wg.Wait()
			if errors.Is(err, errkind.ErrStorageFailure) {
				os.Exit(exitStorageFailure)
			}
			os.Exit(exitTransitionFailed)
		case <-sigCh:
			log.Info("shutting down")
			cancel()
			wg.Wait()
			os.Exit(exitOK)
		case <-ctx.Done():
			wg.Wait()
			os.Exit(exitOK)
		}
	}
}

func configureParams(c *cli.Context) error {
	switch {
	case c.String("network-config") != "":
		cfg, err := params.LoadConfigFile(c.String("network-config"))
		if err != nil {
			return err
		}
		params.OverrideBeaconConfig(cfg)
	case c.Bool("minimal-config"):
		params.UseMinimalConfig()
	}

	params.OverrideSpecOptions(&params.SpecOptions{
		BLSVerify:                  c.Bool("bls-verify"),
		BLSVerifyProofOfPossession: c.Bool("bls-verify-proof-of-possession"),
		IncrementalHasher:          true,
		CacheSizeEntries:           100000,
	})
	return nil
}

func loadGenesis(statePath, blockPath string) (*types.BeaconState, *types.SignedBeaconBlock, error) {
	stateBytes, err := ioutil.ReadFile(statePath)
	if err != nil {
		return nil, nil, err
	}
	genesisState := &types.BeaconState{}
	if err := genesisState.UnmarshalSSZ(stateBytes); err != nil {
		return nil, nil, err
	}

	blockBytes, err := ioutil.ReadFile(blockPath)
	if err != nil {
		return nil, nil, err
	}
	genesisBlock := &types.SignedBeaconBlock{}
	if err := genesisBlock.UnmarshalSSZ(blockBytes); err != nil {
		return nil, nil, err
	}

	return genesisState, genesisBlock, nil
}

// consumeObservedStates drains the pipeline's published snapshots,
// persisting the new head and logging finality progress. This is the
// only goroutine besides Run itself that touches the store's
// head/checkpoint keys, so there is no write contention to arbitrate.
func consumeObservedStates(ctx context.Context, p *pipeline.Pipeline, store *kv.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-p.Observed():
			if !ok {
				return
			}
			log.WithField("root", obs.Root).WithField("slot", obs.Block.Block.Slot).Info("block applied")

			if err := store.SaveHeadBlockRoot(ctx, obs.Root); err != nil {
				log.WithError(err).Error("could not persist head root")
				continue
			}
			if err := store.SaveJustifiedCheckpoint(ctx, obs.State.CurrentJustifiedCheckpoint); err != nil {
				log.WithError(err).Error("could not persist justified checkpoint")
				continue
			}
			if err := store.SaveFinalizedCheckpoint(ctx, obs.State.FinalizedCheckpoint); err != nil {
				log.WithError(err).Error("could not persist finalized checkpoint")
			}
		}
	}
}

// watchBlocksDir polls blocksDir for newly-written SSZ-encoded signed
// blocks and sends each exactly once onto the stream the pipeline
// consumes, standing in for a real network transport behind the same
// boundary.
func watchBlocksDir(ctx context.Context, blocksDir string, stream *p2p.ChannelStream) {
	seen := make(map[string]bool)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, err := ioutil.ReadDir(blocksDir)
			if err != nil {
				log.WithError(err).Warn("could not read blocks directory")
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() || seen[entry.Name()] {
					continue
				}
				seen[entry.Name()] = true

				raw, err := ioutil.ReadFile(filepath.Join(blocksDir, entry.Name()))
				if err != nil {
					log.WithError(err).WithField("file", entry.Name()).Warn("could not read block file")
					continue
				}
				signed := &types.SignedBeaconBlock{}
				if err := signed.UnmarshalSSZ(raw); err != nil {
					log.WithError(err).WithField("file", entry.Name()).Warn("could not decode block file")
					continue
				}
				if !stream.SendBlock(ctx, signed) {
					return
				}
			}
		}
	}
}
