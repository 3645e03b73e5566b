package ocw

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// EthClient is the part of an Ethereum node the worker reads and writes.
// *ethclient.Client implements it.
type EthClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial ethereum node %s", url)
	}
	return client, nil
}

// Broadcaster signs and sends the transactions of the requests this
// validator is the sender of.
type Broadcaster struct {
	client EthClient
	key    *ecdsa.PrivateKey
	from   common.Address
	// GasMargin is added to every gas estimate, in percent.
	GasMargin uint64
}

func NewBroadcaster(client EthClient, key *ecdsa.PrivateKey) *Broadcaster {
	return &Broadcaster{
		client:    client,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		GasMargin: 20,
	}
}

// From is the address the transactions are sent from.
func (b *Broadcaster) From() common.Address { return b.from }

// Send broadcasts a call of contract with data and returns the tx hash.
func (b *Broadcaster) Send(ctx context.Context, contract common.Address, data []byte) (common.Hash, error) {
	chainID, err := b.client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "chain id")
	}
	nonce, err := b.client.PendingNonceAt(ctx, b.from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "pending nonce")
	}
	gasPrice, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "gas price")
	}
	gas, err := b.client.EstimateGas(ctx, ethereum.CallMsg{From: b.from, To: &contract, Data: data})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "estimate gas")
	}
	gas += gas * b.GasMargin / 100

	tx := types.NewTransaction(nonce, contract, new(big.Int), gas, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), b.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sign transaction")
	}
	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "send transaction")
	}
	return signed.Hash(), nil
}
