package inter

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/utils/bounded"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// Every value here is stored by the runtime, so decoding enforces the same
// bounds as construction and rejects anything a writer could not produce.

func writeParams(w *cser.Writer, params []eth.Param) {
	w.Len(len(params))
	for _, p := range params {
		w.SliceBytes(p.Type)
		w.SliceBytes(p.Value)
	}
}

func readParams(r *cser.Reader) []eth.Param {
	n := r.Len(ParamsLimit)
	if n == 0 {
		return nil
	}
	params := make([]eth.Param, n)
	for i := range params {
		params[i].Type = r.SliceBytes(TypeLimit)
		params[i].Value = r.SliceBytes(ValueLimit)
	}
	return params
}

func writeAccounts(w *cser.Writer, s bounded.Set[author.AccountID]) {
	items := s.Items()
	w.Len(len(items))
	for _, a := range items {
		w.FixedBytes(a[:])
	}
}

func readAccounts(r *cser.Reader) bounded.Set[author.AccountID] {
	s := bounded.NewSet[author.AccountID](ConfirmationsLimit)
	for i, n := 0, r.Len(ConfirmationsLimit); i < n; i++ {
		var a author.AccountID
		r.FixedBytes(a[:])
		if ok, _ := s.Insert(a); !ok {
			panic(cser.ErrNonCanonicalEncoding)
		}
	}
	return s
}

func (s *SendRequestData) MarshalCSER(w *cser.Writer) {
	w.U32(s.TxID)
	w.SliceBytes(s.FunctionName)
	writeParams(w, s.Params)
	w.SliceBytes(s.CallerID)
}

func readSendRequest(r *cser.Reader) *SendRequestData {
	s := &SendRequestData{}
	s.TxID = r.U32()
	s.FunctionName = r.SliceBytes(FunctionLimit)
	s.Params = readParams(r)
	s.CallerID = r.SliceBytes(CallerIdLimit)
	return s
}

func (l *LowerProofRequestData) MarshalCSER(w *cser.Writer) {
	w.U32(l.LowerID)
	w.FixedBytes(l.Params[:])
	w.SliceBytes(l.CallerID)
}

func readLowerProofRequest(r *cser.Reader) *LowerProofRequestData {
	l := &LowerProofRequestData{}
	l.LowerID = r.U32()
	r.FixedBytes(l.Params[:])
	l.CallerID = r.SliceBytes(CallerIdLimit)
	return l
}

func (c *ReadContractRequestData) MarshalCSER(w *cser.Writer) {
	w.U32(c.ReadID)
	w.Address(c.Contract)
	w.SliceBytes(c.FunctionName)
	writeParams(w, c.Params)
	w.SliceBytes(c.CallerID)
	w.OptionalU32(c.EthBlock)
}

func readReadContractRequest(r *cser.Reader) *ReadContractRequestData {
	c := &ReadContractRequestData{}
	c.ReadID = r.U32()
	c.Contract = r.Address()
	c.FunctionName = r.SliceBytes(FunctionLimit)
	c.Params = readParams(r)
	c.CallerID = r.SliceBytes(CallerIdLimit)
	c.EthBlock = r.OptionalU32()
	return c
}

// MarshalCSER writes the variant tag followed by the variant.
func (req Request) MarshalCSER(w *cser.Writer) error {
	if !req.Valid() {
		return ErrUnknownRequest
	}
	w.U8(uint8(req.Kind()))
	switch req.Kind() {
	case SendRequest:
		req.Send.MarshalCSER(w)
	case LowerProofRequest:
		req.LowerProof.MarshalCSER(w)
	case ReadContractRequest:
		req.Read.MarshalCSER(w)
	}
	return nil
}

func (req *Request) UnmarshalCSER(r *cser.Reader) error {
	*req = Request{}
	switch RequestKind(r.U8()) {
	case SendRequest:
		req.Send = readSendRequest(r)
	case LowerProofRequest:
		req.LowerProof = readLowerProofRequest(r)
	case ReadContractRequest:
		req.Read = readReadContractRequest(r)
	default:
		return ErrUnknownRequest
	}
	return nil
}

func (req Request) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(req.MarshalCSER)
}

func (req *Request) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, req.UnmarshalCSER)
}

func (c ActiveConfirmation) MarshalCSER(w *cser.Writer) {
	w.Hash(c.MsgHash)
	sigs := c.Confirmations.Items()
	w.Len(len(sigs))
	for _, s := range sigs {
		w.FixedBytes(s[:])
	}
}

func readActiveConfirmation(r *cser.Reader) ActiveConfirmation {
	c := NewActiveConfirmation(r.Hash())
	for i, n := 0, r.Len(ConfirmationsLimit); i < n; i++ {
		var s author.Signature
		r.FixedBytes(s[:])
		if ok, _ := c.Confirmations.Insert(s); !ok {
			panic(cser.ErrNonCanonicalEncoding)
		}
	}
	return c
}

func (t *ActiveEthTransaction) MarshalCSER(w *cser.Writer) {
	w.SliceBytes(t.FunctionName)
	writeParams(w, t.EthTxParams)
	w.FixedBytes(t.Sender[:])
	w.U64(t.Expiry)
	w.Hash(t.EthTxHash)
	writeAccounts(w, t.SuccessCorroborations)
	writeAccounts(w, t.FailureCorroborations)
	writeAccounts(w, t.ValidTxHashCorroborations)
	writeAccounts(w, t.InvalidTxHashCorroborations)
	w.Bool(t.TxSucceeded)
	w.U16(t.ReplayAttempt)
}

func readActiveEthTransaction(r *cser.Reader) *ActiveEthTransaction {
	t := &ActiveEthTransaction{}
	t.FunctionName = r.SliceBytes(FunctionLimit)
	t.EthTxParams = readParams(r)
	r.FixedBytes(t.Sender[:])
	t.Expiry = r.U64()
	t.EthTxHash = r.Hash()
	t.SuccessCorroborations = readAccounts(r)
	t.FailureCorroborations = readAccounts(r)
	t.ValidTxHashCorroborations = readAccounts(r)
	t.InvalidTxHashCorroborations = readAccounts(r)
	t.TxSucceeded = r.Bool()
	t.ReplayAttempt = r.U16()
	return t
}

func (a *ActiveRead) MarshalCSER(w *cser.Writer) {
	writeAccounts(w, a.Voters)
	w.Len(len(a.Tallies))
	for _, t := range a.Tallies {
		w.SliceBytes(t.Result)
		w.U32(t.Votes)
	}
}

func readActiveRead(r *cser.Reader) *ActiveRead {
	a := &ActiveRead{Voters: readAccounts(r)}
	n := r.Len(ConfirmationsLimit)
	if n > 0 {
		a.Tallies = make([]ReadResultTally, n)
	}
	for i := range a.Tallies {
		a.Tallies[i].Result = r.SliceBytes(ReadResultLimit)
		a.Tallies[i].Votes = r.U32()
	}
	return a
}

func (a *ActiveRequestData) MarshalCSER(w *cser.Writer) error {
	if err := a.Request.MarshalCSER(w); err != nil {
		return err
	}
	a.Confirmation.MarshalCSER(w)
	w.Bool(a.TxData != nil)
	if a.TxData != nil {
		a.TxData.MarshalCSER(w)
	}
	w.Bool(a.ReadData != nil)
	if a.ReadData != nil {
		a.ReadData.MarshalCSER(w)
	}
	w.U64(uint64(a.LastUpdated))
	return nil
}

func (a *ActiveRequestData) UnmarshalCSER(r *cser.Reader) error {
	if err := a.Request.UnmarshalCSER(r); err != nil {
		return err
	}
	a.Confirmation = readActiveConfirmation(r)
	a.TxData = nil
	if r.Bool() {
		a.TxData = readActiveEthTransaction(r)
	}
	a.ReadData = nil
	if r.Bool() {
		a.ReadData = readActiveRead(r)
	}
	a.LastUpdated = idx.Block(r.U64())
	return nil
}

func (a *ActiveRequestData) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(a.MarshalCSER)
}

func (a *ActiveRequestData) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, a.UnmarshalCSER)
}

func (t *TransactionData) MarshalCSER(w *cser.Writer) error {
	w.SliceBytes(t.FunctionName)
	writeParams(w, t.Params)
	w.FixedBytes(t.Sender[:])
	w.Hash(t.EthTxHash)
	w.Bool(t.TxSucceeded)
	return nil
}

func (t *TransactionData) UnmarshalCSER(r *cser.Reader) error {
	t.FunctionName = r.SliceBytes(FunctionLimit)
	t.Params = readParams(r)
	r.FixedBytes(t.Sender[:])
	t.EthTxHash = r.Hash()
	t.TxSucceeded = r.Bool()
	return nil
}

func (t *TransactionData) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(t.MarshalCSER)
}

func (t *TransactionData) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, t.UnmarshalCSER)
}

// MarshalRequestQueue encodes the queue in FIFO order.
func MarshalRequestQueue(queue []Request) ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.Len(len(queue))
		for _, req := range queue {
			if err := req.MarshalCSER(w); err != nil {
				return err
			}
		}
		return nil
	})
}

// UnmarshalRequestQueue decodes a queue of at most limit requests.
func UnmarshalRequestQueue(raw []byte, limit int) ([]Request, error) {
	var queue []Request
	err := cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		n := r.Len(limit)
		queue = make([]Request, n)
		for i := range queue {
			if err := queue[i].UnmarshalCSER(r); err != nil {
				return err
			}
		}
		return nil
	})
	return queue, err
}
