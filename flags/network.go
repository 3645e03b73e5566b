package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// NetworkFlags selects the bridge network and the Ethereum side.

func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "Network rules to run (main|test|fake)",
		},
		cli.StringFlag{
			Name:  "fakenet",
			Usage: "Run validator i of a fake network of n validators (format i/n)",
		},
		cli.StringFlag{
			Name:  "eth.rpc",
			Usage: "Ethereum JSON-RPC endpoint used by the off-chain worker",
		},
		cli.Uint64Flag{
			Name:  "eth.finality",
			Usage: "Blocks under the Ethereum head after which a block is final",
			Value: 20,
		},
		cli.DurationFlag{
			Name:  "eth.timeout",
			Usage: "Bound on the Ethereum calls made for one block",
			Value: 30 * time.Second,
		},
	}
}

// PoolFlags isolates the extrinsic pool tuning knobs.
func PoolFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "pool.capacity",
			Usage: "Maximum number of unsigned extrinsics waiting for a block",
			Value: 4096,
		},
		cli.IntFlag{
			Name:  "pool.inbox",
			Usage: "Size of the inbox buffering extrinsics of the off-chain worker",
			Value: 1024,
		},
	}
}
