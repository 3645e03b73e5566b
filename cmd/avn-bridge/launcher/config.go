// This file maps the CLI context, config file and environment to the config struct

package launcher

import (
	"bufio"
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/naoina/toml"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/avn/genesis"
	"github.com/rony4d/go-avn-bridge/integration"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/inter/validatorpk"
	"github.com/rony4d/go-avn-bridge/ocw"
	"github.com/rony4d/go-avn-bridge/runtime"
)

var (
	ErrNoGenesis      = errors.New("no genesis: set [Genesis] in the config file or use --fakenet")
	ErrUnknownNetwork = errors.New("unknown network")
	ErrBadFakeNet     = errors.New("fakenet must be i/n with 0 <= i <= n")
	ErrUnknownDB      = errors.New("unknown db backend")
)

// Environment variables read after the config file.
const (
	EnvDataDir      = "AVN_DATADIR"
	EnvNetwork      = "AVN_NETWORK"
	EnvEthRPC       = "AVN_ETH_RPC"
	EnvValidatorKey = "AVN_VALIDATOR_KEY"
	EnvKeyFile      = "AVN_VALIDATOR_KEYFILE"
	EnvSentryDSN    = "AVN_SENTRY_DSN"
)

// these settings keep the TOML keys identical to the Go field names
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node      NodeConfig
	Network   NetworkConfig
	Genesis   *GenesisConfig `toml:",omitempty"`
	Store     StoreConfig
	Runtime   runtime.Config
	Worker    WorkerConfig
	Validator ValidatorConfig
	Metrics   MetricsConfig
}

type NodeConfig struct {
	DataDir   string
	Name      string
	Preset    string
	BlockTime time.Duration
	Logging   LoggingConfig
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string
}

type NetworkConfig struct {
	Name    string
	FakeNet string
	EthRPC  string
}

// GenesisConfig describes a real network in the config file. Fake
// networks are generated instead.
type GenesisConfig struct {
	Validators []validatorpk.PubKey
	Instances  []genesis.Instance
	NextTxID   eth.EthereumId
}

type StoreConfig struct {
	DB string
}

type WorkerConfig struct {
	Enabled       bool
	FinalityDepth uint64
	CacheSize     int
	LockTTL       time.Duration
	CallTimeout   time.Duration
}

type ValidatorConfig struct {
	Key     string `toml:",omitempty"`
	KeyFile string `toml:",omitempty"`
}

type MetricsConfig struct {
	Enable   bool
	HTTPAddr string
	HTTPPort int
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

// defaultConfig fills Config from DefaultConfig in defaults.go so both stay in
// sync.

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir:   resolvePath(d.Node.DataDir),
			Name:      d.Node.Name,
			Preset:    d.Node.Preset,
			BlockTime: d.Node.BlockTime,
			Logging: LoggingConfig{
				Verbosity: d.Logging.Verbosity,
				Format:    d.Logging.Format,
				Color:     d.Logging.Color,
				SentryDSN: d.Logging.SentryDSN,
			},
		},
		Network: NetworkConfig{
			Name:    d.Network.Name,
			FakeNet: d.Network.FakeNet,
			EthRPC:  d.Network.EthRPC,
		},
		Store: StoreConfig{DB: d.Storage.DB},
		Runtime: runtime.Config{
			Pool:      runtime.PoolConfig{MaxExtrinsics: d.Pool.Capacity},
			InboxSize: d.Pool.InboxSize,
		},
		Worker: WorkerConfig{
			Enabled:       d.Worker.Enabled,
			FinalityDepth: d.Network.FinalityDepth,
			CacheSize:     d.Worker.CacheSize,
			LockTTL:       d.Worker.LockTTL,
			CallTimeout:   d.Worker.CallTimeout,
		},
		Validator: ValidatorConfig{
			Key:     d.Validator.Key,
			KeyFile: d.Validator.KeyFile,
		},
		Metrics: MetricsConfig{
			Enable:   d.Metrics.Enable,
			HTTPAddr: d.Metrics.HTTPAddr,
			HTTPPort: d.Metrics.HTTPPort,
		},
	}
}

// MakeAllConfigs merges, in order: defaults, the --preset profile, the
// config file, the environment (after loading the --env file) and the CLI
// flags.

func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if name := ctx.GlobalString("preset"); name != "" {
		preset, err := integration.GetPresetByName(name)
		if err != nil {
			return cfg, err
		}
		applyPreset(&cfg, preset)
	}

	if file := ctx.GlobalString("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "load config file %s", file)
		}
	}

	if file := ctx.GlobalString("env"); file != "" {
		if err := godotenv.Load(file); err != nil {
			return cfg, errors.Wrapf(err, "load env file %s", file)
		}
	}
	applyEnv(&cfg)

	applyCLIOverrides(ctx, &cfg)

	if err := cfg.check(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) check() error {
	if c.Network.FakeNet != "" {
		if _, _, err := parseFakeNet(c.Network.FakeNet); err != nil {
			return err
		}
	} else if _, ok := avn.RulesByName(c.Network.Name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, c.Network.Name)
	}
	switch c.Store.DB {
	case integration.DBBolt, integration.DBMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDB, c.Store.DB)
	}
	return nil
}

func (c WorkerConfig) ocwConfig() ocw.Config {
	return ocw.Config{
		FinalityDepth: c.FinalityDepth,
		CacheSize:     c.CacheSize,
		LockTTL:       c.LockTTL,
		CallTimeout:   c.CallTimeout,
	}
}

// MetricsAddr is the listen address of the metrics server.
func (c MetricsConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPAddr, c.HTTPPort)
}

// -----------------------------------------------------------------------------
// Config-file / env / CLI wiring
// -----------------------------------------------------------------------------

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// add file name to errors that have a line number
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return err
}

// dumpConfig renders cfg the way loadConfigFile reads it.
func dumpConfig(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}

func applyPreset(cfg *Config, preset integration.PresetConfig) {
	current := integration.PresetConfig{
		Name:            cfg.Node.Preset,
		DB:              cfg.Store.DB,
		BlockTime:       cfg.Node.BlockTime,
		PoolCapacity:    cfg.Runtime.Pool.MaxExtrinsics,
		WorkerCacheSize: cfg.Worker.CacheSize,
		EnableMetrics:   cfg.Metrics.Enable,
		EnableWorker:    cfg.Worker.Enabled,
	}
	integration.ApplyPreset(&current, preset)

	cfg.Node.Preset = current.Name
	cfg.Store.DB = current.DB
	cfg.Node.BlockTime = current.BlockTime
	cfg.Runtime.Pool.MaxExtrinsics = current.PoolCapacity
	cfg.Worker.CacheSize = current.WorkerCacheSize
	cfg.Metrics.Enable = current.EnableMetrics
	cfg.Worker.Enabled = current.EnableWorker
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Node.DataDir = resolvePath(v)
	}
	if v := os.Getenv(EnvNetwork); v != "" {
		cfg.Network.Name = v
	}
	if v := os.Getenv(EnvEthRPC); v != "" {
		cfg.Network.EthRPC = v
	}
	if v := os.Getenv(EnvValidatorKey); v != "" {
		cfg.Validator.Key = v
	}
	if v := os.Getenv(EnvKeyFile); v != "" {
		cfg.Validator.KeyFile = v
	}
	if v := os.Getenv(EnvSentryDSN); v != "" {
		cfg.Node.Logging.SentryDSN = v
	}
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if ctx.GlobalIsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.GlobalString("datadir"))
	}
	if ctx.GlobalIsSet("identity") {
		cfg.Node.Name = ctx.GlobalString("identity")
	}
	if ctx.GlobalIsSet("blocktime") {
		cfg.Node.BlockTime = ctx.GlobalDuration("blocktime")
	}
	if ctx.GlobalIsSet("db") {
		cfg.Store.DB = ctx.GlobalString("db")
	}

	if ctx.GlobalIsSet("network") {
		cfg.Network.Name = ctx.GlobalString("network")
	}
	if ctx.GlobalIsSet("fakenet") {
		cfg.Network.FakeNet = ctx.GlobalString("fakenet")
		cfg.Network.Name = avn.FakeNetName
	}
	if ctx.GlobalIsSet("eth.rpc") {
		cfg.Network.EthRPC = ctx.GlobalString("eth.rpc")
	}
	if ctx.GlobalIsSet("eth.finality") {
		cfg.Worker.FinalityDepth = ctx.GlobalUint64("eth.finality")
	}
	if ctx.GlobalIsSet("eth.timeout") {
		cfg.Worker.CallTimeout = ctx.GlobalDuration("eth.timeout")
	}

	if ctx.GlobalIsSet("pool.capacity") {
		cfg.Runtime.Pool.MaxExtrinsics = ctx.GlobalInt("pool.capacity")
	}
	if ctx.GlobalIsSet("pool.inbox") {
		cfg.Runtime.InboxSize = ctx.GlobalInt("pool.inbox")
	}

	if ctx.GlobalIsSet("validator.key") {
		cfg.Validator.Key = ctx.GlobalString("validator.key")
	}
	if ctx.GlobalIsSet("validator.keyfile") {
		cfg.Validator.KeyFile = ctx.GlobalString("validator.keyfile")
	}
	if ctx.GlobalBool("ocw.disable") {
		cfg.Worker.Enabled = false
	}
	if ctx.GlobalIsSet("ocw.cache") {
		cfg.Worker.CacheSize = ctx.GlobalInt("ocw.cache")
	}
	if ctx.GlobalIsSet("ocw.lockttl") {
		cfg.Worker.LockTTL = ctx.GlobalDuration("ocw.lockttl")
	}

	if ctx.GlobalIsSet("log.format") {
		cfg.Node.Logging.Format = ctx.GlobalString("log.format")
	}
	if ctx.GlobalIsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	}
	if ctx.GlobalIsSet("log.color") {
		cfg.Node.Logging.Color = ctx.GlobalBool("log.color")
	}
	if ctx.GlobalIsSet("sentry.dsn") {
		cfg.Node.Logging.SentryDSN = ctx.GlobalString("sentry.dsn")
	}

	if ctx.GlobalBool("metrics") {
		cfg.Metrics.Enable = true
	}
	if ctx.GlobalIsSet("metrics.addr") {
		cfg.Metrics.HTTPAddr = ctx.GlobalString("metrics.addr")
	}
	if ctx.GlobalIsSet("metrics.port") {
		cfg.Metrics.HTTPPort = ctx.GlobalInt("metrics.port")
	}
}

// -----------------------------------------------------------------------------
// Genesis and keys
// -----------------------------------------------------------------------------

// parseFakeNet parses "i/n": validator i (1-based, 0 for none) of n.
func parseFakeNet(s string) (id, n int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadFakeNet, s)
	}
	id, err1 := strconv.Atoi(parts[0])
	n, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || n < 1 || id < 0 || id > n {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadFakeNet, s)
	}
	return id, n, nil
}

// makeGenesis builds the genesis of the configured network.
func makeGenesis(cfg Config) (genesis.Genesis, error) {
	if cfg.Network.FakeNet != "" {
		_, n, err := parseFakeNet(cfg.Network.FakeNet)
		if err != nil {
			return genesis.Genesis{}, err
		}
		return genesis.FakeGenesis(n), nil
	}
	if cfg.Genesis == nil {
		return genesis.Genesis{}, ErrNoGenesis
	}
	rules, ok := avn.RulesByName(cfg.Network.Name)
	if !ok {
		return genesis.Genesis{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, cfg.Network.Name)
	}
	g := genesis.Genesis{
		Rules:     rules,
		Instances: cfg.Genesis.Instances,
		NextTxID:  cfg.Genesis.NextTxID,
	}
	for i, pk := range cfg.Genesis.Validators {
		pub, err := pk.ECDSA()
		if err != nil {
			return genesis.Genesis{}, errors.Wrapf(err, "genesis validator %d", i)
		}
		g.Validators = append(g.Validators, author.Author{
			Account: author.AccountIDFromPubKey(pub),
			Key:     pk,
		})
	}
	if err := g.Validate(); err != nil {
		return genesis.Genesis{}, errors.Wrap(err, "genesis")
	}
	return g, nil
}

// validatorKey returns the configured validator key, or nil when the node
// runs without one.
func validatorKey(cfg Config) (*ecdsa.PrivateKey, error) {
	if cfg.Network.FakeNet != "" {
		id, _, err := parseFakeNet(cfg.Network.FakeNet)
		if err != nil || id == 0 {
			return nil, err
		}
		return genesis.FakeKey(id), nil
	}
	if cfg.Validator.KeyFile != "" {
		key, err := crypto.LoadECDSA(cfg.Validator.KeyFile)
		return key, errors.Wrap(err, "load validator key file")
	}
	if cfg.Validator.Key != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Validator.Key, "0x"))
		return key, errors.Wrap(err, "parse validator key")
	}
	return nil, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
