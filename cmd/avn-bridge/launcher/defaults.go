package launcher

import (
	"time"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/integration"
)

// Defaults bundles the baseline configuration values the launcher uses
// before presets, config files and flags override them.

type Defaults struct {
	Node      NodeDefaults
	Network   NetworkDefaults
	Storage   StorageDefaults
	Pool      PoolDefaults
	Metrics   MetricsDefaults
	Validator ValidatorDefaults
	Worker    WorkerDefaults
	Logging   LoggingDefaults
}

// NodeDefaults captures top-level node settings.
type NodeDefaults struct {
	DataDir   string        //	Filesystem root of the node state (chaindata.db). Changing it lets you run several nodes on one machine.
	Name      string        //	Human-readable node identity, added to every log line.
	Preset    string        //	Name of the integration preset applied before the config file.
	BlockTime time.Duration //	Interval between produced blocks.
}

// NetworkDefaults selects the network rules and the Ethereum endpoint.
type NetworkDefaults struct {
	Name          string //	Network rules preset (main, test, fake). Every node of a network must agree on it.
	FakeNet       string //	"i/n": run validator i of a deterministic fake network of n validators. Empty on real networks.
	EthRPC        string //	Ethereum JSON-RPC endpoint read and written by the off-chain worker.
	FinalityDepth uint64 //	Ethereum blocks under the head after which a block is treated as final.
}

// StorageDefaults configures the state store.
type StorageDefaults struct {
	DB string //	Store backend: bolt keeps the state in <datadir>/chaindata.db, memory loses it on exit.
}

// PoolDefaults bounds the extrinsic pool.
type PoolDefaults struct {
	Capacity  int //	Maximum number of unsigned extrinsics waiting for a block.
	InboxSize int //	Buffered extrinsics sent by the off-chain worker between two blocks.
}

type MetricsDefaults struct {
	Enable   bool   //	Toggle for the metrics server; when true the node exposes Prometheus metrics on HTTPAddr:HTTPPort/metrics.
	HTTPAddr string //	IP/interface the metrics server binds to.
	HTTPPort int    //	TCP port of the metrics server.
}

// ValidatorDefaults stores defaults for the validator key.
type ValidatorDefaults struct {
	Key     string //	Hex-encoded validator key inline (not recommended; better use a file).
	KeyFile string //	Path to a file holding the hex-encoded validator key.
}

// WorkerDefaults tunes the off-chain worker.
type WorkerDefaults struct {
	Enabled     bool          //	Whether the off-chain worker runs when a validator key is available.
	CacheSize   int           //	Entries kept by the task locks and the discovered events cache.
	LockTTL     time.Duration //	Time after which a task lock expires on its own.
	CallTimeout time.Duration //	Bound on the Ethereum calls made for one block.
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace).
	Format    string //	Log output format (text vs json).
	Color     bool   //	Whether to use ANSI color codes in logs.
	SentryDSN string //	When set, errors are also reported to Sentry.
}

// DefaultConfig returns a fully populated Defaults instance.

func DefaultConfig() Defaults {
	preset := integration.DefaultPreset()
	return Defaults{
		Node: NodeDefaults{
			DataDir:   "~/.avn-bridge",
			Name:      "avn-bridge",
			Preset:    preset.Name,
			BlockTime: preset.BlockTime,
		},
		Network: NetworkDefaults{
			Name:          avn.MainNetName,
			FinalityDepth: 20,
		},
		Storage: StorageDefaults{
			DB: preset.DB,
		},
		Pool: PoolDefaults{
			Capacity:  preset.PoolCapacity,
			InboxSize: 1024,
		},
		Metrics: MetricsDefaults{
			Enable:   preset.EnableMetrics,
			HTTPAddr: "127.0.0.1",
			HTTPPort: 6060,
		},
		Worker: WorkerDefaults{
			Enabled:     preset.EnableWorker,
			CacheSize:   preset.WorkerCacheSize,
			LockTTL:     5 * time.Minute,
			CallTimeout: 30 * time.Second,
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     true,
		},
	}
}
