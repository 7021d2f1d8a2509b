package types

// MintDecimals is the number of decimals of the comptoken mint. Comptokens are
// indivisible, so one Amount unit is one token.
const MintDecimals uint8 = 0

// Amount represents a quantity of comptokens.
type Amount uint64

// ProofReward is the default number of tokens minted per accepted proof.
const ProofReward Amount = 2

// SaturatingSub returns a - b, or 0 if b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	if b > a {
		return 0
	}
	return a - b
}
