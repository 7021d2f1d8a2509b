// Package distribution computes the daily token issuance and the interest
// and UBI each holder is owed from the recorded history.
package distribution

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/compto-com/comptoken-program/pkg/core/blockhash"
	"github.com/compto-com/comptoken-program/pkg/core/types"
)

// EncodedSize is the size of an encoded State:
// window || yesterday_supply || high_water_mark || last_distribution_time ||
// oldest_index || multipliers[365] || verified_humans || ubi_per_head[365].
const EncodedSize = blockhash.EncodedSize + 4*8 + HistorySize*8 + 8 + HistorySize*8

var (
	ErrDistributionAlreadyRun = errors.New("daily distribution already ran today")
	ErrSupplyRegression       = errors.New("current supply is below yesterday's supply")
	ErrCorruptState           = errors.New("distribution state is corrupt")
)

// Values is the output of one daily distribution, in tokens to mint into
// each bank.
type Values struct {
	Interest         types.Amount
	VerifiedHumanUBI types.Amount
	FutureUBI        types.Amount
}

// Total returns the sum of all three amounts.
func (v Values) Total() types.Amount {
	return v.Interest + v.VerifiedHumanUBI + v.FutureUBI
}

// Owed is what a holder is owed for the days since their last payout.
type Owed struct {
	Interest types.Amount
	UBI      types.Amount
}

// State is the global distribution record.
type State struct {
	Window               blockhash.Window
	YesterdaySupply      uint64
	HighWaterMark        uint64
	LastDistributionTime int64
	VerifiedHumans       uint64
	History              *History
}

// NewState returns the state the program starts with: the window seeded from
// current and the last distribution set to the day containing now. A zero
// announcementInterval means blockhash.DefaultAnnouncementInterval.
func NewState(current types.Hash, now, announcementInterval int64) *State {
	s := &State{History: NewHistory()}
	s.Window.AnnouncementInterval = announcementInterval
	s.Window.Refresh(current, now)
	s.LastDistributionTime = types.NormalizeTime(now)
	return s
}

// MaxAllowableHWMIncrease returns the largest high water mark increase
// permitted when yesterday's supply was supply. ok is false when growth is
// uncapped.
func MaxAllowableHWMIncrease(supply uint64) (limit uint64, ok bool) {
	if supply <= MinSupplyLimitAmt {
		return 0, false
	}
	limiter := math.Pow(float64(supply-MinSupplyLimitAmt), -AdjustFactor) + EndGoalPercentIncrease
	limit = uint64(RoundHalfEven(float64(supply)*limiter)) / DistributionMultiplier
	if limit < 1 {
		limit = 1
	}
	return limit, true
}

// VerifiedHumanRatio is the share of each day's UBI paid out to verified
// humans: 2v/(F+v), capped at 1, where F is FutureUBIVerifiedHumans.
func VerifiedHumanRatio(verified uint64) float64 {
	if verified == 0 {
		return 0
	}
	v := float64(verified)
	return math.Min(1, 2*v/(float64(FutureUBIVerifiedHumans)+v))
}

// DailyDistribution runs one day's issuance given the current circulating
// supply and the balance of the future UBI bank. It refreshes the window
// with current and returns the amounts to mint. On error the state is left
// unchanged.
func (s *State) DailyDistribution(supply, futureUBIBank types.Amount, current types.Hash, now int64) (Values, error) {
	if now < s.LastDistributionTime+types.SecPerDay {
		return Values{}, ErrDistributionAlreadyRun
	}
	if uint64(supply) < s.YesterdaySupply {
		return Values{}, fmt.Errorf("%w: %d < %d", ErrSupplyRegression, supply, s.YesterdaySupply)
	}

	s.Window.Refresh(current, now)
	s.LastDistributionTime = types.NormalizeTime(now)

	// 1. Raise the high water mark by the day's mining, capped by supply.
	dailyMining := uint64(supply) - s.YesterdaySupply
	increase := uint64(0)
	if dailyMining > s.HighWaterMark {
		increase = dailyMining - s.HighWaterMark
	}
	if limit, ok := MaxAllowableHWMIncrease(s.YesterdaySupply); ok && increase > limit {
		increase = limit
	}
	if increase == 0 {
		s.History.Insert(IdentityEntry)
		s.YesterdaySupply = uint64(supply)
		return Values{}, nil
	}
	s.HighWaterMark += increase

	// 2. Split the issuance evenly between interest and UBI.
	total := increase * DistributionMultiplier
	ubi := total / 2
	interest := total - ubi

	// 3. Divide UBI between verified humans and the future pool.
	verifiedUBI := uint64(math.Floor(float64(ubi) * VerifiedHumanRatio(s.VerifiedHumans)))
	futureUBI := ubi - verifiedUBI

	// 4. The future pool earns interest like any holder.
	rate := float64(interest) / float64(supply)
	futureInterest := uint64(RoundHalfEven(float64(futureUBIBank) * rate))
	if futureInterest > interest {
		futureInterest = interest
	}
	interest -= futureInterest
	futureUBI += futureInterest

	// 5. Record the day.
	entry := Entry{Multiplier: 1 + rate}
	if s.VerifiedHumans > 0 {
		entry.UBIPerHead = verifiedUBI / s.VerifiedHumans
	}
	s.History.Insert(entry)
	s.YesterdaySupply = uint64(supply) + total

	return Values{
		Interest:         types.Amount(interest),
		VerifiedHumanUBI: types.Amount(verifiedUBI),
		FutureUBI:        types.Amount(futureUBI),
	}, nil
}

// OwedDistributions folds the most recent days entries of history over
// balance, oldest first. UBI is added only when verified is set.
func (s *State) OwedDistributions(days int64, balance types.Amount, verified bool) Owed {
	if days <= 0 {
		return Owed{}
	}
	n := HistorySize
	if days < HistorySize {
		n = int(days)
	}

	running := float64(balance)
	var ubi uint64
	s.History.FoldRecent(n, func(e Entry) {
		running = RoundHalfEven(running * e.Multiplier)
		if verified {
			running += float64(e.UBIPerHead)
			ubi += e.UBIPerHead
		}
	})

	final := uint64(running)
	var interest uint64
	if final > uint64(balance)+ubi {
		interest = final - uint64(balance) - ubi
	}
	return Owed{Interest: types.Amount(interest), UBI: types.Amount(ubi)}
}

// AddVerifiedHuman increments the verified human count.
func (s *State) AddVerifiedHuman() {
	s.VerifiedHumans++
}

// MarshalBinary encodes the state with integers and floats little-endian.
// The history is written as two parallel arrays in slot order together with
// the insertion cursor.
func (s *State) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EncodedSize)
	w, err := s.Window.MarshalBinary()
	if err != nil {
		return nil, err
	}
	off := copy(buf, w)
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}
	put(s.YesterdaySupply)
	put(s.HighWaterMark)
	put(uint64(s.LastDistributionTime))
	put(uint64(s.History.oldest))
	for _, e := range s.History.entries {
		put(math.Float64bits(e.Multiplier))
	}
	put(s.VerifiedHumans)
	for _, e := range s.History.entries {
		put(e.UBIPerHead)
	}
	return buf, nil
}

// UnmarshalBinary decodes a state written by MarshalBinary.
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) != EncodedSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrCorruptState, len(data), EncodedSize)
	}
	if err := s.Window.UnmarshalBinary(data[:blockhash.EncodedSize]); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	off := blockhash.EncodedSize
	get := func() uint64 {
		v := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		return v
	}
	s.YesterdaySupply = get()
	s.HighWaterMark = get()
	s.LastDistributionTime = int64(get())
	oldest := get()
	if oldest >= HistorySize {
		return fmt.Errorf("%w: history cursor %d", ErrCorruptState, oldest)
	}
	h := &History{oldest: int(oldest)}
	for i := range h.entries {
		h.entries[i].Multiplier = math.Float64frombits(get())
	}
	s.VerifiedHumans = get()
	for i := range h.entries {
		h.entries[i].UBIPerHead = get()
	}
	s.History = h
	return nil
}
