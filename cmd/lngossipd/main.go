package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btclogv1 "github.com/btcsuite/btclog"
	"github.com/ellemouton/lngossip/build"
	"github.com/ellemouton/lngossip/discovery"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnrpc/graphrpc"
	"github.com/ellemouton/lngossip/netann"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// errNoChainBackend is returned by the funding transaction lookup, as the
// daemon runs without a chain backend.
var errNoChainBackend = errors.New("no chain backend configured")

// noChainLocator is the TxLocator used without a chain backend. None of our
// channels can be announced with it.
type noChainLocator struct{}

func (noChainLocator) LocateTx(chainhash.Hash) (uint32, uint32, error) {
	return 0, 0, errNoChainBackend
}

var _ netann.TxLocator = noChainLocator{}

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	rotator, err := build.NewRotatingLogWriter(cfg.LogConfig)
	if err != nil {
		return err
	}
	defer func() {
		_ = rotator.Close()
	}()

	consoleHandler, fileHandler := build.NewDefaultLoggers(
		cfg.LogConfig, rotator,
	)
	logMgr := build.NewSubLoggerManager(build.NewHandlerSet(
		btclogv1.LevelInfo, consoleHandler, fileHandler,
	))
	setupLoggers(logMgr)
	if err := logMgr.SetLogLevels(cfg.DebugLevel); err != nil {
		return err
	}

	var selfKey [33]byte
	copy(selfKey[:], cfg.nodeKey.PubKey().SerializeCompressed())

	gspdLog.Infof("Starting lngossipd with identity %x", selfKey)

	signer := keychain.NewPrivKeyMessageSigner(cfg.nodeKey)
	fundingKey := fn.MapOption(func(key *btcec.PrivateKey) [33]byte {
		signer.AddKey(keychain.FundingKeyLocator, key)

		var pub [33]byte
		copy(pub[:], key.PubKey().SerializeCompressed())

		return pub
	})(cfg.fundingKey)

	gossiper, err := discovery.New(&discovery.Config{
		SelfKey:    selfKey,
		Signer:     signer,
		FundingKey: fundingKey,
		TxLocator:  noChainLocator{},
		Policy: netann.ChannelPolicy{
			TimeLockDelta: cfg.Gossip.Policy.TimeLockDelta,
			MinHTLC:       cfg.Gossip.Policy.MinHTLC,
			BaseFee:       cfg.Gossip.Policy.BaseFee,
			FeeRate:       cfg.Gossip.Policy.FeeRate,
		},
		ExternalAddr:       cfg.externalAddr,
		Alias:              cfg.alias,
		Color:              cfg.color,
		AssumeChannelValid: cfg.Gossip.AssumeChannelValid,
		RejectCacheSize:    cfg.Gossip.RejectCacheSize,
		ReannounceInterval: cfg.Gossip.ReannounceInterval,
		DrainInterval:      cfg.Gossip.DrainInterval,
	})
	if err != nil {
		return err
	}
	if err := gossiper.Start(); err != nil {
		return err
	}
	defer func() {
		_ = gossiper.Stop()
	}()

	rpcServer := graphrpc.New(&graphrpc.Config{
		ListenAddr: cfg.RPCListen,
		Source:     gossiper,
	})
	if err := rpcServer.Start(); err != nil {
		return err
	}
	defer func() {
		_ = rpcServer.Stop()
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	sig := <-interrupt
	gspdLog.Infof("Received %v, shutting down", sig)

	return nil
}
