package launcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-avn-bridge/flags"
	"github.com/rony4d/go-avn-bridge/integration"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/metrics"
	"github.com/rony4d/go-avn-bridge/ocw"
	"github.com/rony4d/go-avn-bridge/runtime"
)

var app = flags.NewApp("AvN Ethereum bridge node")

func init() {
	app.Action = runNode
	app.Commands = []cli.Command{
		{
			Name:   "dumpconfig",
			Usage:  "Show the configuration values as TOML",
			Action: dumpConfigCmd,
		},
	}
}

// Launch parses args and runs the node until it is interrupted.
func Launch(args []string) error {
	return app.Run(args)
}

// DialFunc connects the off-chain worker to Ethereum.
type DialFunc func(ctx context.Context, url string) (ocw.EthClient, error)

func dialEthereum(ctx context.Context, url string) (ocw.EthClient, error) {
	client, err := ocw.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func runNode(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Node.Logging)
	if err != nil {
		return err
	}
	log := logger.WithField("node", cfg.Node.Name)

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newStack(sigctx, cfg, log, dialEthereum)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Run(sigctx)
}

func dumpConfigCmd(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	out, err := dumpConfig(cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(app.Writer, string(out))
	return err
}

// stack is a running bridge node with its optional off-chain worker and
// metrics server.
type stack struct {
	cfg    Config
	db     kvstore.Database
	node   *runtime.Node
	worker *ocw.Worker
	blocks chan idx.Block
	server *http.Server
	log    *logrus.Entry
}

func newStack(ctx context.Context, cfg Config, log *logrus.Entry, dial DialFunc) (*stack, error) {
	g, err := makeGenesis(cfg)
	if err != nil {
		return nil, err
	}
	key, err := validatorKey(cfg)
	if err != nil {
		return nil, err
	}

	s := &stack{cfg: cfg, log: log}
	if s.db, err = openDB(cfg); err != nil {
		return nil, err
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enable {
		reg := prometheus.NewRegistry()
		rec = metrics.NewRecorder(reg)
		s.server = metrics.Serve(cfg.Metrics.MetricsAddr(), reg)
		log.WithField("addr", cfg.Metrics.MetricsAddr()).Info("Metrics server started")
	}

	s.node, err = runtime.New(s.db, g, cfg.Runtime, runtime.Deps{Metrics: rec, Log: log})
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "open runtime")
	}
	log.WithFields(logrus.Fields{
		"network":    g.Rules.Name,
		"validators": len(g.Validators),
		"instances":  len(g.Instances),
		"block":      s.node.State().LastBlock.Idx,
	}).Info("Bridge runtime opened")

	switch {
	case !cfg.Worker.Enabled:
		log.Info("Off-chain worker disabled")
	case key == nil:
		log.Info("No validator key, off-chain worker not started")
	case cfg.Network.EthRPC == "":
		log.Warn("No Ethereum endpoint, off-chain worker not started")
	default:
		client, err := dial(ctx, cfg.Network.EthRPC)
		if err != nil {
			s.Close()
			return nil, err
		}
		signer := author.NewSigner(key)
		s.worker, err = ocw.New(cfg.Worker.ocwConfig(), signer, s.node, s.node.Inbox(), client, ocw.NewBroadcaster(client, key), rec, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.blocks = make(chan idx.Block, 1)
		s.node.SubscribeBlocks(s.blocks)
		log.WithField("account", signer.Author().Account.Short()).Info("Off-chain worker started")
	}
	return s, nil
}

func openDB(cfg Config) (kvstore.Database, error) {
	if cfg.Store.DB == integration.DBMemory {
		return kvstore.NewMemory(), nil
	}
	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return nil, err
	}
	db, err := kvstore.OpenBolt(filepath.Join(cfg.Node.DataDir, "chaindata.db"))
	return db, errors.Wrap(err, "open state db")
}

// Run produces blocks until ctx is done. An interrupted node is not an
// error.
func (s *stack) Run(ctx context.Context) error {
	if s.worker != nil {
		go func() {
			if err := s.worker.Run(ctx, s.blocks); err != nil && !errors.Is(err, context.Canceled) {
				s.log.WithError(err).Error("Off-chain worker stopped")
			}
		}()
	}
	s.log.WithField("blocktime", s.cfg.Node.BlockTime).Info("Producing blocks")
	err := s.node.Run(ctx, s.cfg.Node.BlockTime)
	if errors.Is(err, context.Canceled) {
		s.log.Info("Node stopped")
		return nil
	}
	return err
}

func (s *stack) Close() {
	if s.server != nil {
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdown)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close state db")
		}
	}
}
