package lifecycle

import "context"

// EntityKind names the lock namespaces used for per-entity serialization.
type EntityKind string

const (
	EntityMintRequest     EntityKind = "mint_request"
	EntityExchangeRequest EntityKind = "exchange_request"
	EntityCertificate     EntityKind = "certificate"
)

// LockKey identifies one entity for the duration of an Update.
type LockKey struct {
	Kind EntityKind
	ID   uint64
}

// Tx is the view a single engine operation gets over the store. Lookups
// return (nil, nil) when the entity does not exist; the services translate
// that into NOT_FOUND.
type Tx interface {
	MintRequest(id uint64) (*MintRequest, error)
	SaveMintRequest(req *MintRequest) error

	ExchangeRequest(id uint64) (*ExchangeRequest, error)
	SaveExchangeRequest(req *ExchangeRequest) error

	Certificate(id uint64) (*Certificate, error)
	SaveCertificate(cert *Certificate) error
	// CertificateBySource finds the certificate minted for a request, if any.
	CertificateBySource(sourceMintRequestID uint64) (*Certificate, error)

	// PendingExchangeForCertificate finds an in-flight exchange request
	// referencing the certificate, if any.
	PendingExchangeForCertificate(certificateID uint64) (*ExchangeRequest, error)

	SaveAuditRecord(rec *AuditRecord) error

	// NextRequestID allocates from the counter shared by both request
	// kinds; NextCertificateID allocates from the certificate namespace.
	// Allocation is immediate, so an aborted operation may leave a gap,
	// never a duplicate.
	NextRequestID() (uint64, error)
	NextCertificateID() (uint64, error)
}

// MintRequestFilter narrows listing queries. Nil fields match everything.
type MintRequestFilter struct {
	Requester *Actor
	Status    *RequestStatus
}

type ExchangeRequestFilter struct {
	Requester     *Actor
	Status        *RequestStatus
	CertificateID *uint64
}

type CertificateFilter struct {
	Owner       *Actor
	Disposition *Disposition
}

type AuditRecordFilter struct {
	Auditor     *Actor
	SubjectType *RequestKind
}

// Store owns all entity state. Update runs fn with serializable isolation
// for the given keys: two concurrent updates touching the same key never
// interleave, and fn's writes commit all-or-nothing. Operations on disjoint
// keys proceed in parallel.
type Store interface {
	Update(ctx context.Context, keys []LockKey, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error

	ListMintRequests(ctx context.Context, f MintRequestFilter) ([]*MintRequest, error)
	ListExchangeRequests(ctx context.Context, f ExchangeRequestFilter) ([]*ExchangeRequest, error)
	ListCertificates(ctx context.Context, f CertificateFilter) ([]*Certificate, error)
	ListAuditRecords(ctx context.Context, f AuditRecordFilter) ([]*AuditRecord, error)

	// Counters reports the next unallocated request and certificate ids
	// without consuming them.
	Counters(ctx context.Context) (nextRequestID, nextCertificateID uint64, err error)
}
