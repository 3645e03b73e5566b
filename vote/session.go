package vote

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/utils/bounded"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// VotersLimit bounds the ayes, nays and confirmations of one session.
const VotersLimit = 100

// VotingSessionData is the stored state of a voting session.
type VotingSessionData struct {
	VotingSessionID []byte
	// Threshold is the number of ayes (or nays) that settles the vote.
	Threshold         uint32
	Ayes              bounded.Set[author.AccountID]
	Nays              bounded.Set[author.AccountID]
	EndOfVotingPeriod idx.Block
	// Confirmations are the Ethereum confirmations of the aye voters.
	Confirmations  bounded.Vec[author.Signature]
	CreatedAtBlock idx.Block
}

func NewVotingSessionData(id []byte, threshold uint32, end, created idx.Block) *VotingSessionData {
	return &VotingSessionData{
		VotingSessionID:   id,
		Threshold:         threshold,
		Ayes:              bounded.NewSet[author.AccountID](VotersLimit),
		Nays:              bounded.NewSet[author.AccountID](VotersLimit),
		EndOfVotingPeriod: end,
		Confirmations:     bounded.NewVec[author.Signature](VotersLimit),
		CreatedAtBlock:    created,
	}
}

// HasOutcome reports whether either side reached the threshold.
func (d *VotingSessionData) HasOutcome() bool {
	return uint32(d.Ayes.Len()) >= d.Threshold || uint32(d.Nays.Len()) >= d.Threshold
}

// IsApproved reports whether the ayes reached the threshold.
func (d *VotingSessionData) IsApproved() bool {
	return uint32(d.Ayes.Len()) >= d.Threshold
}

func (d *VotingSessionData) HasVoted(voter author.AccountID) bool {
	return d.Ayes.Contains(voter) || d.Nays.Contains(voter)
}

func writeVoters(w *cser.Writer, s bounded.Set[author.AccountID]) {
	items := s.Items()
	w.Len(len(items))
	for _, a := range items {
		w.FixedBytes(a[:])
	}
}

func readVoters(r *cser.Reader) bounded.Set[author.AccountID] {
	s := bounded.NewSet[author.AccountID](VotersLimit)
	for i, n := 0, r.Len(VotersLimit); i < n; i++ {
		var a author.AccountID
		r.FixedBytes(a[:])
		if ok, _ := s.Insert(a); !ok {
			panic(cser.ErrNonCanonicalEncoding)
		}
	}
	return s
}

func (d *VotingSessionData) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes(d.VotingSessionID)
		w.U32(d.Threshold)
		writeVoters(w, d.Ayes)
		writeVoters(w, d.Nays)
		w.U64(uint64(d.EndOfVotingPeriod))
		sigs := d.Confirmations.Items()
		w.Len(len(sigs))
		for _, s := range sigs {
			w.FixedBytes(s[:])
		}
		w.U64(uint64(d.CreatedAtBlock))
		return nil
	})
}

func (d *VotingSessionData) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		d.VotingSessionID = r.SliceBytes(SessionIDLimit)
		d.Threshold = r.U32()
		d.Ayes = readVoters(r)
		d.Nays = readVoters(r)
		d.EndOfVotingPeriod = idx.Block(r.U64())
		d.Confirmations = bounded.NewVec[author.Signature](VotersLimit)
		for i, n := 0, r.Len(VotersLimit); i < n; i++ {
			var s author.Signature
			r.FixedBytes(s[:])
			_ = d.Confirmations.TryPush(s)
		}
		d.CreatedAtBlock = idx.Block(r.U64())
		return nil
	})
}
