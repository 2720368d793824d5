package main

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/ellemouton/lngossip/broadcast"
	"github.com/ellemouton/lngossip/build"
	"github.com/ellemouton/lngossip/discovery"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/lnrpc/graphrpc"
	"github.com/ellemouton/lngossip/netann"
	"github.com/ellemouton/lngossip/peer"
)

// Subsystem is the logging code of the daemon itself.
const Subsystem = "GSPD"

// gspdLog is the logger of the daemon itself.
var gspdLog = btclog.Disabled

// setupLoggers registers a logger for every subsystem with the manager.
func setupLoggers(mgr *build.SubLoggerManager) {
	gspdLog = build.NewSubLogger(Subsystem, mgr.GenSubLogger)

	AddSubLogger(mgr, graph.Subsystem, graph.UseLogger)
	AddSubLogger(mgr, broadcast.Subsystem, broadcast.UseLogger)
	AddSubLogger(mgr, netann.Subsystem, netann.UseLogger)
	AddSubLogger(mgr, peer.Subsystem, peer.UseLogger)
	AddSubLogger(mgr, discovery.Subsystem, discovery.UseLogger)
	AddSubLogger(mgr, graphrpc.Subsystem, graphrpc.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(mgr *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	logger := build.NewSubLogger(subsystem, mgr.GenSubLogger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
