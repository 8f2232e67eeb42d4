package fees

import "errors"

// ErrInvalidValue is returned when a fee computation receives a non-positive value.
var ErrInvalidValue = errors.New("fees: value must be positive")

// Rates holds the fee configuration loaded once at engine initialization.
// All rates are expressed in basis points of 10,000.
type Rates struct {
	// BaseRateBps is the requester fee rate applied to the claimed carbon
	// value of a mint request.
	BaseRateBps uint64
	// AuditFeeRateBps is the fraction of the requester fee that is
	// partitioned between the auditor and the system on approval. The
	// remainder stays with the protocol treasury.
	AuditFeeRateBps uint64
	// AuditorShareBps is the auditor's cut of that partition. The system
	// share takes whatever is left, so rounding dust always lands there.
	AuditorShareBps uint64
	// SystemFeeRateBps and ExchangeAuditFeeRateBps are deducted from the
	// audited carbon value when a certificate is redeemed.
	SystemFeeRateBps        uint64
	ExchangeAuditFeeRateBps uint64
	// MinMintFee floors the mint request fee. Deployments typically set
	// this to one whole token so trivial claims still pay for their audit.
	MinMintFee Amount
}

// MintFee is the fee split computed at mint request submission.
type MintFee struct {
	RequesterFee Amount `json:"requester_fee"`
	AuditorShare Amount `json:"auditor_share"`
	SystemShare  Amount `json:"system_share"`
	// Remainder is the part of the requester fee that stays with the
	// protocol treasury. RequesterFee == AuditorShare + SystemShare + Remainder
	// holds exactly for every input.
	Remainder Amount `json:"remainder"`
}

// ExchangePayout is the settlement computed when a certificate is redeemed.
type ExchangePayout struct {
	PayoutToHolder Amount `json:"payout_to_holder"`
	SystemFee      Amount `json:"system_fee"`
	AuditFee       Amount `json:"audit_fee"`
	// SystemShare is the total retained by the protocol: system fee plus
	// audit cost. ApprovedValue == PayoutToHolder + SystemShare exactly.
	SystemShare Amount `json:"system_share"`
}

// Policy computes fee splits. Pure and deterministic: the same input always
// yields the same output, and nothing is mutated.
type Policy struct {
	rates Rates
}

func NewPolicy(rates Rates) *Policy {
	return &Policy{rates: rates}
}

func (p *Policy) Rates() Rates { return p.rates }

// ComputeMintFee derives the requester fee and its auditor/system partition
// from a claimed carbon value. All divisions truncate toward zero; the system
// share absorbs the rounding dust of the partition.
func (p *Policy) ComputeMintFee(claimedValue Amount) (MintFee, error) {
	if !claimedValue.IsPositive() {
		return MintFee{}, ErrInvalidValue
	}

	requesterFee := claimedValue.MulBps(p.rates.BaseRateBps)
	if requesterFee.Cmp(p.rates.MinMintFee) < 0 {
		requesterFee = p.rates.MinMintFee
	}

	pool := requesterFee.MulBps(p.rates.AuditFeeRateBps)
	auditorShare := pool.MulBps(p.rates.AuditorShareBps)
	systemShare := pool.Sub(auditorShare)
	remainder := requesterFee.Sub(pool)

	return MintFee{
		RequesterFee: requesterFee,
		AuditorShare: auditorShare,
		SystemShare:  systemShare,
		Remainder:    remainder,
	}, nil
}

// ComputeExchangePayout derives the holder payout from an audited carbon
// value. The system and audit fees come off the top; the holder receives the
// rest, so no value is created or destroyed.
func (p *Policy) ComputeExchangePayout(approvedValue Amount) (ExchangePayout, error) {
	if !approvedValue.IsPositive() {
		return ExchangePayout{}, ErrInvalidValue
	}

	systemFee := approvedValue.MulBps(p.rates.SystemFeeRateBps)
	auditFee := approvedValue.MulBps(p.rates.ExchangeAuditFeeRateBps)
	payout := approvedValue.Sub(systemFee).Sub(auditFee)

	return ExchangePayout{
		PayoutToHolder: payout,
		SystemFee:      systemFee,
		AuditFee:       auditFee,
		SystemShare:    systemFee.Add(auditFee),
	}, nil
}
