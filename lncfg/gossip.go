package lncfg

import (
	"fmt"
	"time"

	"github.com/ellemouton/lngossip/discovery"
)

const (
	// DefaultTimeLockDelta is the default CLTV delta we advertise.
	DefaultTimeLockDelta = 40

	// DefaultMinHTLC is the default smallest HTLC we forward, in msat.
	DefaultMinHTLC = 1

	// DefaultBaseFee is the default base fee we charge, in msat.
	DefaultBaseFee = 1000

	// DefaultFeeRate is the default proportional fee we charge, in
	// millionths.
	DefaultFeeRate = 1

	// minReannounceInterval is the lowest reannounce interval accepted.
	// Anything shorter would get our announcements rate limited by peers.
	minReannounceInterval = time.Minute
)

// Gossip holds the configuration options for gossip propagation.
//
//nolint:lll
type Gossip struct {
	ReannounceInterval time.Duration `long:"reannounce-interval" description:"How often our own channels and node are announced again so peers don't prune them."`

	DrainInterval time.Duration `long:"drain-interval" description:"How often pending gossip is flushed to every connected peer."`

	RejectCacheSize uint64 `long:"reject-cache-size" description:"The number of messages with invalid signatures to remember so they are dropped without verifying them again. 0 disables the cache."`

	AssumeChannelValid bool `long:"assumechanvalid" description:"Skip the signature, feature and funding checks of channel announcements and channel updates. Node announcements are always checked."`

	Policy Policy `group:"policy" namespace:"policy"`
}

// Policy holds the routing policy advertised for our own channels.
//
//nolint:lll
type Policy struct {
	TimeLockDelta uint16 `long:"timelockdelta" description:"The CLTV delta we will subtract from a forwarded HTLC's timelock value."`
	MinHTLC       uint32 `long:"minhtlc" description:"The smallest HTLC we are willing to forward on our channels, in millisatoshi."`
	BaseFee       uint32 `long:"basefee" description:"The base fee in millisatoshi we will charge for forwarding payments on our channels."`
	FeeRate       uint32 `long:"feerate" description:"The fee rate used when forwarding payments on our channels. The total fee charged is basefee + (amount * feerate / 1000000), where amount is the forwarded amount."`
}

// DefaultGossip returns the gossip config with every option at its default.
func DefaultGossip() *Gossip {
	return &Gossip{
		ReannounceInterval: discovery.DefaultReannounceInterval,
		DrainInterval:      discovery.DefaultDrainInterval,
		RejectCacheSize:    discovery.DefaultRejectCacheSize,
		Policy: Policy{
			TimeLockDelta: DefaultTimeLockDelta,
			MinHTLC:       DefaultMinHTLC,
			BaseFee:       DefaultBaseFee,
			FeeRate:       DefaultFeeRate,
		},
	}
}

// Validate checks that the various gossip config options are sane.
//
// NOTE: this is part of the Validator interface.
func (g *Gossip) Validate() error {
	if g.ReannounceInterval < minReannounceInterval {
		return fmt.Errorf("reannounce-interval must be at least %v, "+
			"got %v", minReannounceInterval, g.ReannounceInterval)
	}

	if g.DrainInterval <= 0 {
		return fmt.Errorf("drain-interval must be positive, got %v",
			g.DrainInterval)
	}

	if g.DrainInterval > g.ReannounceInterval {
		return fmt.Errorf("drain-interval (%v) must not exceed "+
			"reannounce-interval (%v)", g.DrainInterval,
			g.ReannounceInterval)
	}

	if g.Policy.TimeLockDelta == 0 {
		return fmt.Errorf("policy.timelockdelta must be positive")
	}

	return nil
}
