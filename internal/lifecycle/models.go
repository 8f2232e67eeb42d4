package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"greentrace/lifecycle-engine/internal/fees"
)

// Actor identifies a participant (requester, auditor, certificate holder).
// The engine treats it as opaque; deployments typically put a wallet address
// or principal id here.
type Actor string

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

type RequestKind string

const (
	KindMint     RequestKind = "MINT"
	KindExchange RequestKind = "EXCHANGE"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

type Disposition string

const (
	DispositionActive   Disposition = "ACTIVE"
	DispositionRedeemed Disposition = "REDEEMED"
)

// MintRequest is a claim of environmental action awaiting audit. Ids come
// from a single monotonic counter shared with exchange requests, so an id
// alone identifies a request.
type MintRequest struct {
	ID                     uint64        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Requester              Actor         `gorm:"not null;index" json:"requester"`
	Title                  string        `gorm:"not null" json:"title"`
	Story                  string        `gorm:"not null" json:"story"`
	ClaimedCarbonReduction fees.Amount   `gorm:"not null" json:"claimed_carbon_reduction"`
	EvidenceURI            string        `json:"evidence_uri"`
	Status                 RequestStatus `gorm:"not null;default:'PENDING';index" json:"status"`
	RequestedFee           fees.Amount   `gorm:"not null" json:"requested_fee"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

func (MintRequest) TableName() string { return "mint_requests" }

// ExchangeRequest asks to redeem an owned certificate for payout.
type ExchangeRequest struct {
	ID            uint64        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Requester     Actor         `gorm:"not null;index" json:"requester"`
	CertificateID uint64        `gorm:"not null;index" json:"certificate_id"`
	Status        RequestStatus `gorm:"not null;default:'PENDING';index" json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (ExchangeRequest) TableName() string { return "exchange_requests" }

// AuditRecord is the terminal decision on a request. Exactly one exists per
// decided subject; it is created only by the audit engine.
type AuditRecord struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Auditor      Actor       `gorm:"not null;index" json:"auditor"`
	SubjectID    uint64      `gorm:"not null;uniqueIndex" json:"subject_id"`
	SubjectType  RequestKind `gorm:"not null" json:"subject_type"`
	DecidedValue fees.Amount `json:"decided_value"`
	Decision     Decision    `gorm:"not null" json:"decision"`
	Reason       string      `json:"reason"`
	DecidedAt    time.Time   `json:"decided_at"`
}

func (AuditRecord) TableName() string { return "audit_records" }

// Certificate is the non-fungible record issued for an approved mint
// request. Certificate ids live in their own namespace, separate from
// request ids.
type Certificate struct {
	ID                  uint64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Owner               Actor       `gorm:"not null;index" json:"owner"`
	SourceMintRequestID uint64      `gorm:"not null;uniqueIndex" json:"source_mint_request_id"`
	ApprovedCarbonValue fees.Amount `gorm:"not null" json:"approved_carbon_value"`
	Disposition         Disposition `gorm:"not null;default:'ACTIVE';index" json:"disposition"`
	IssuedAt            time.Time   `json:"issued_at"`
	RedeemedAt          *time.Time  `json:"redeemed_at,omitempty"`
}

func (Certificate) TableName() string { return "certificates" }

// Request wraps GetRequest's either-kind result.
type Request struct {
	Kind     RequestKind      `json:"kind"`
	Mint     *MintRequest     `json:"mint,omitempty"`
	Exchange *ExchangeRequest `json:"exchange,omitempty"`
}

// Treasury is the external payment/escrow collaborator. Collect escrows a
// requester fee, Release returns escrow after a rejection, Disburse pays out
// shares and redemption proceeds. Failures surface as ESCROW_FAILURE and
// abort the triggering operation.
type Treasury interface {
	Collect(ctx context.Context, from Actor, amount fees.Amount) error
	Release(ctx context.Context, to Actor, amount fees.Amount) error
	Disburse(ctx context.Context, to Actor, amount fees.Amount) error
}

// RoleDirectory answers role-membership lookups. The engine never trusts
// caller-supplied role claims.
type RoleDirectory interface {
	HasAuditorRole(ctx context.Context, actor Actor) (bool, error)
}
