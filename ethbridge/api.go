package ethbridge

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

// APIVersion is the version of the query API. Versions before 3 address
// the default instance only; LegacyAPI keeps serving them.
const APIVersion = 3

// Host holds the bridge instances of a node.
type Host struct {
	instances map[uint32]*Bridge
	defaultID uint32
	hasAny    bool
}

func NewHost() *Host {
	return &Host{instances: make(map[uint32]*Bridge)}
}

// Add registers b. The first instance added is the default one.
func (h *Host) Add(b *Bridge) {
	if !h.hasAny {
		h.defaultID, h.hasAny = b.ID(), true
	}
	h.instances[b.ID()] = b
}

func (h *Host) Get(id uint32) (*Bridge, error) {
	b, ok := h.instances[id]
	if !ok {
		return nil, ErrUnknownInstance
	}
	return b, nil
}

func (h *Host) Default() (*Bridge, error) {
	if !h.hasAny {
		return nil, ErrUnknownInstance
	}
	return h.instances[h.defaultID], nil
}

// IDs lists the instance ids in ascending order.
func (h *Host) IDs() []uint32 {
	ids := make([]uint32, 0, len(h.instances))
	for id := range h.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Bridges returns the instances in id order.
func (h *Host) Bridges() []*Bridge {
	ids := h.IDs()
	out := make([]*Bridge, len(ids))
	for i, id := range ids {
		out[i] = h.instances[id]
	}
	return out
}

// Submitter puts the votes received through the API into the pool.
type Submitter interface {
	SubmitEthereumEvents(instance uint32, account author.AccountID, partition discovery.EthereumEventsPartition, sig author.Signature) error
	SubmitLatestEthereumBlock(instance uint32, account author.AccountID, block uint32, sig author.Signature) error
}

// API answers the off-chain workers' queries.
type API struct {
	host   *Host
	submit Submitter
}

func NewAPI(host *Host, submit Submitter) *API {
	return &API{host: host, submit: submit}
}

func (a *API) Version() uint32 { return APIVersion }

// QueryAuthors lists the current validators.
func (a *API) QueryAuthors() ([]author.Author, error) {
	b, err := a.host.Default()
	if err != nil {
		return nil, err
	}
	return b.chain.Validators().Authors(), nil
}

// QueryActiveBlockRange returns nil while the initial range is being voted.
func (a *API) QueryActiveBlockRange(instance uint32) (*discovery.ActiveEthRange, error) {
	b, err := a.host.Get(instance)
	if err != nil {
		return nil, err
	}
	return b.ActiveRange()
}

func (a *API) QueryHasAuthorCastedVote(instance uint32, account author.AccountID) (bool, error) {
	b, err := a.host.Get(instance)
	if err != nil {
		return false, err
	}
	return b.HasCastVote(account)
}

// QuerySignatures returns the confirmations of the active request when its
// message hash is msgHash.
func (a *API) QuerySignatures(instance uint32, msgHash common.Hash) ([]author.Signature, error) {
	b, err := a.host.Get(instance)
	if err != nil {
		return nil, err
	}
	hash, sigs, err := b.Signatures()
	if err != nil || hash != msgHash {
		return nil, err
	}
	return sigs, nil
}

func (a *API) QueryBridgeContract(instance uint32) (common.Address, error) {
	b, err := a.host.Get(instance)
	if err != nil {
		return common.Address{}, err
	}
	in, err := b.Instance()
	return in.BridgeContract, err
}

// CreateProof is the payload account signs to vote for partition.
func (a *API) CreateProof(instance uint32, account author.AccountID, partition discovery.EthereumEventsPartition) ([]byte, error) {
	b, err := a.host.Get(instance)
	if err != nil {
		return nil, err
	}
	in, err := b.Instance()
	if err != nil {
		return nil, err
	}
	return EventsProof(in.Hash(), account, partition)
}

// CreateLatestBlockProof is the payload account signs to vote for block.
func (a *API) CreateLatestBlockProof(instance uint32, account author.AccountID, block uint32) ([]byte, error) {
	b, err := a.host.Get(instance)
	if err != nil {
		return nil, err
	}
	in, err := b.Instance()
	if err != nil {
		return nil, err
	}
	return LatestBlockProof(in.Hash(), account, block), nil
}

func (a *API) SubmitVote(instance uint32, account author.AccountID, partition discovery.EthereumEventsPartition, sig author.Signature) error {
	if _, err := a.host.Get(instance); err != nil {
		return err
	}
	return a.submit.SubmitEthereumEvents(instance, account, partition, sig)
}

func (a *API) SubmitLatestEthereumBlock(instance uint32, account author.AccountID, block uint32, sig author.Signature) error {
	if _, err := a.host.Get(instance); err != nil {
		return err
	}
	return a.submit.SubmitLatestEthereumBlock(instance, account, block, sig)
}

// AdditionalTransactions are the transactions of the active range scanned
// regardless of the filter.
func (a *API) AdditionalTransactions(instance uint32) ([]common.Hash, error) {
	active, err := a.QueryActiveBlockRange(instance)
	if err != nil || active == nil {
		return nil, err
	}
	return active.AdditionalTransactions.Items(), nil
}

// Instances maps every hosted instance id to its contract.
func (a *API) Instances() (map[uint32]eth.EthBridgeInstance, error) {
	out := make(map[uint32]eth.EthBridgeInstance, len(a.host.instances))
	for _, b := range a.host.Bridges() {
		in, err := b.Instance()
		if err != nil {
			return nil, err
		}
		out[b.ID()] = in
	}
	return out, nil
}

// Legacy serves callers of API versions before 3.
func (a *API) Legacy() LegacyAPI {
	return LegacyAPI{api: a}
}

// LegacyAPI is the pre-instance API. Every call addresses the default
// instance.
type LegacyAPI struct {
	api *API
}

func (l LegacyAPI) defaultID() (uint32, error) {
	b, err := l.api.host.Default()
	if err != nil {
		return 0, err
	}
	return b.ID(), nil
}

func (l LegacyAPI) QueryActiveBlockRange() (*discovery.ActiveEthRange, error) {
	id, err := l.defaultID()
	if err != nil {
		return nil, err
	}
	return l.api.QueryActiveBlockRange(id)
}

func (l LegacyAPI) QueryHasAuthorCastedVote(account author.AccountID) (bool, error) {
	id, err := l.defaultID()
	if err != nil {
		return false, err
	}
	return l.api.QueryHasAuthorCastedVote(id, account)
}

func (l LegacyAPI) QuerySignatures(msgHash common.Hash) ([]author.Signature, error) {
	id, err := l.defaultID()
	if err != nil {
		return nil, err
	}
	return l.api.QuerySignatures(id, msgHash)
}

func (l LegacyAPI) QueryBridgeContract() (common.Address, error) {
	id, err := l.defaultID()
	if err != nil {
		return common.Address{}, err
	}
	return l.api.QueryBridgeContract(id)
}

func (l LegacyAPI) CreateProof(account author.AccountID, partition discovery.EthereumEventsPartition) ([]byte, error) {
	id, err := l.defaultID()
	if err != nil {
		return nil, err
	}
	return l.api.CreateProof(id, account, partition)
}

func (l LegacyAPI) SubmitVote(account author.AccountID, partition discovery.EthereumEventsPartition, sig author.Signature) error {
	id, err := l.defaultID()
	if err != nil {
		return err
	}
	return l.api.SubmitVote(id, account, partition, sig)
}

func (l LegacyAPI) SubmitLatestEthereumBlock(account author.AccountID, block uint32, sig author.Signature) error {
	id, err := l.defaultID()
	if err != nil {
		return err
	}
	return l.api.SubmitLatestEthereumBlock(id, account, block, sig)
}

func (l LegacyAPI) AdditionalTransactions() ([]common.Hash, error) {
	id, err := l.defaultID()
	if err != nil {
		return nil, err
	}
	return l.api.AdditionalTransactions(id)
}
