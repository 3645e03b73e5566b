package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs specific to the local node instance (identity, store, validator key, etc.).

func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "identity",
			Usage: "Custom node name used in logs",
		},
		cli.StringFlag{
			Name:  "db",
			Usage: "State store backend (bolt|memory)",
			Value: "bolt",
		},
		cli.DurationFlag{
			Name:  "blocktime",
			Usage: "Interval between produced blocks",
			Value: 6 * time.Second,
		},
		cli.StringFlag{
			Name:  "validator.key",
			Usage: "Hex-encoded secp256k1 key of the validator (prefer validator.keyfile)",
		},
		cli.StringFlag{
			Name:  "validator.keyfile",
			Usage: "File holding the hex-encoded validator key",
		},
		cli.BoolFlag{
			Name:  "ocw.disable",
			Usage: "Do not run the off-chain worker",
		},
		cli.IntFlag{
			Name:  "ocw.cache",
			Usage: "Entries kept by the off-chain worker lock and event caches",
			Value: 1024,
		},
		cli.DurationFlag{
			Name:  "ocw.lockttl",
			Usage: "Time after which an off-chain task lock expires",
			Value: 5 * time.Minute,
		},
	}
}
