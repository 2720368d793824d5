package main

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/ellemouton/lngossip/build"
	"github.com/ellemouton/lngossip/lncfg"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	defaultConfigFilename = "lngossipd.conf"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultRPCListen      = "localhost:8089"
)

var (
	defaultDataDir    = btcutil.AppDataDir("lngossipd", false)
	defaultConfigFile = filepath.Join(defaultDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultDataDir, defaultLogDirname)
)

// config defines the configuration options for lngossipd.
//
//nolint:lll
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store lngossipd's data within"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	NodeKey    string `long:"nodekey" description:"The hex encoded private identity key of the node. A throwaway key is generated if not set."`
	FundingKey string `long:"fundingkey" description:"The hex encoded private key used in the funding output of our channels. The identity key is used if not set."`
	ExternalIP string `long:"externalip" description:"The host:port to advertise in our node announcement. The node is not announced without it."`
	Alias      string `long:"alias" description:"The node alias, up to 32 bytes of UTF-8."`
	Color      string `long:"color" description:"The node color in hex format, e.g. #3399ff."`

	RPCListen string `long:"rpclisten" description:"The address to serve the read-only graph API on."`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	Gossip *lncfg.Gossip `group:"gossip" namespace:"gossip"`

	// The following are derived from the options above.
	nodeKey      *btcec.PrivateKey
	fundingKey   fn.Option[*btcec.PrivateKey]
	externalAddr fn.Option[lnwire.NetAddr]
	alias        lnwire.NodeAlias
	color        color.RGBA
}

// defaultConfig returns a config with every option at its default.
func defaultConfig() config {
	return config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		DebugLevel: defaultLogLevel,
		Color:      "#3399ff",
		RPCListen:  defaultRPCListen,
		LogConfig:  build.DefaultLogConfig(defaultLogDir),
		Gossip:     lncfg.DefaultGossip(),
	}
}

// loadConfig initializes and parses the config using a config file and
// command line options. Command line options take precedence over the config
// file.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	// Pre-parse the command line to find an alternative config file.
	preCfg := cfg
	_, err := flags.NewParser(&preCfg, flags.Default).ParseArgs(args)
	if err != nil {
		return nil, err
	}

	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	err = flags.IniParse(configFile, &cfg)

	// Only a missing config file at the default location is tolerated.
	if err != nil && (!os.IsNotExist(err) ||
		preCfg.ConfigFile != defaultConfigFile) {

		return nil, fmt.Errorf("unable to parse config file %v: %w",
			configFile, err)
	}

	// Command line options override the config file.
	if _, err := flags.NewParser(&cfg, flags.Default).ParseArgs(
		args,
	); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the options and fills in the derived fields.
func (c *config) validate() error {
	c.DataDir = cleanAndExpandPath(c.DataDir)
	c.LogConfig.Dir = cleanAndExpandPath(c.LogConfig.Dir)

	if err := c.LogConfig.Validate(); err != nil {
		return err
	}

	if err := c.Gossip.Validate(); err != nil {
		return err
	}

	if c.NodeKey == "" {
		key, err := btcec.NewPrivateKey()
		if err != nil {
			return err
		}
		c.nodeKey = key
	} else {
		key, err := parsePrivKey(c.NodeKey)
		if err != nil {
			return fmt.Errorf("invalid nodekey: %w", err)
		}
		c.nodeKey = key
	}

	c.fundingKey = fn.None[*btcec.PrivateKey]()
	if c.FundingKey != "" {
		key, err := parsePrivKey(c.FundingKey)
		if err != nil {
			return fmt.Errorf("invalid fundingkey: %w", err)
		}
		c.fundingKey = fn.Some(key)
	}

	c.externalAddr = fn.None[lnwire.NetAddr]()
	if c.ExternalIP != "" {
		addr, err := lnwire.ParseNetAddr(c.ExternalIP)
		if err != nil {
			return fmt.Errorf("invalid externalip: %w", err)
		}
		c.externalAddr = fn.Some(addr)
	}

	alias, err := lnwire.NewNodeAlias(c.Alias)
	if err != nil {
		return fmt.Errorf("invalid alias: %w", err)
	}
	c.alias = alias

	rgb, err := parseColor(c.Color)
	if err != nil {
		return err
	}
	c.color = rgb

	return nil
}

// parsePrivKey parses a hex encoded private key.
func parsePrivKey(s string) (*btcec.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(s)
	if err != nil || len(keyBytes) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("must be %d hex encoded bytes",
			btcec.PrivKeyBytesLen)
	}

	key, _ := btcec.PrivKeyFromBytes(keyBytes)

	return key, nil
}

// parseColor parses a color of the form #rrggbb.
func parseColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color must be in format "+
			"#rrggbb, got %q", s)
	}

	b, err := hex.DecodeString(s[1:])
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return color.RGBA{R: b[0], G: b[1], B: b[2]}, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
