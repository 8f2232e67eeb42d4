package lifecycle

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PGStore is the Postgres-backed Store. Per-entity serialization comes from
// row locks (SELECT ... FOR UPDATE) inside a transaction, so the lock keys
// passed to Update are not needed here.
type PGStore struct {
	db *gorm.DB
}

func NewPGStore(db *gorm.DB) *PGStore { return &PGStore{db: db} }

// idCounter backs the monotonic request and certificate id namespaces.
type idCounter struct {
	Name  string `gorm:"primaryKey"`
	Value uint64 `gorm:"not null"`
}

func (idCounter) TableName() string { return "id_counters" }

const (
	counterRequests     = "requests"
	counterCertificates = "certificates"
)

// AutoMigrate creates the engine tables and seeds the id counters.
func (s *PGStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(
		&MintRequest{},
		&ExchangeRequest{},
		&AuditRecord{},
		&Certificate{},
		&idCounter{},
	); err != nil {
		return err
	}
	for _, name := range []string{counterRequests, counterCertificates} {
		row := idCounter{Name: name}
		if err := s.db.Where(idCounter{Name: name}).FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, keys []LockKey, fn func(Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgTx{db: tx, locking: true})
	})
}

func (s *PGStore) View(ctx context.Context, fn func(Tx) error) error {
	return fn(&pgTx{db: s.db.WithContext(ctx)})
}

type pgTx struct {
	db      *gorm.DB
	locking bool
}

func (t *pgTx) query() *gorm.DB {
	if t.locking {
		return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.db
}

func (t *pgTx) MintRequest(id uint64) (*MintRequest, error) {
	var m MintRequest
	err := t.query().First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) SaveMintRequest(req *MintRequest) error {
	return t.db.Save(req).Error
}

func (t *pgTx) ExchangeRequest(id uint64) (*ExchangeRequest, error) {
	var m ExchangeRequest
	err := t.query().First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) SaveExchangeRequest(req *ExchangeRequest) error {
	return t.db.Save(req).Error
}

func (t *pgTx) Certificate(id uint64) (*Certificate, error) {
	var c Certificate
	err := t.query().First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) SaveCertificate(cert *Certificate) error {
	return t.db.Save(cert).Error
}

func (t *pgTx) CertificateBySource(sourceMintRequestID uint64) (*Certificate, error) {
	var c Certificate
	err := t.query().First(&c, "source_mint_request_id = ?", sourceMintRequestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) PendingExchangeForCertificate(certificateID uint64) (*ExchangeRequest, error) {
	var m ExchangeRequest
	err := t.query().
		Where("certificate_id = ? AND status = ?", certificateID, StatusPending).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) SaveAuditRecord(rec *AuditRecord) error {
	return t.db.Create(rec).Error
}

func (t *pgTx) nextID(name string) (uint64, error) {
	var row idCounter
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "name = ?", name).Error; err != nil {
		return 0, err
	}
	row.Value++
	if err := t.db.Save(&row).Error; err != nil {
		return 0, err
	}
	return row.Value, nil
}

func (t *pgTx) NextRequestID() (uint64, error)     { return t.nextID(counterRequests) }
func (t *pgTx) NextCertificateID() (uint64, error) { return t.nextID(counterCertificates) }

func (s *PGStore) ListMintRequests(ctx context.Context, f MintRequestFilter) ([]*MintRequest, error) {
	q := s.db.WithContext(ctx).Model(&MintRequest{})
	if f.Requester != nil {
		q = q.Where("requester = ?", *f.Requester)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	var out []*MintRequest
	return out, q.Order("id asc").Find(&out).Error
}

func (s *PGStore) ListExchangeRequests(ctx context.Context, f ExchangeRequestFilter) ([]*ExchangeRequest, error) {
	q := s.db.WithContext(ctx).Model(&ExchangeRequest{})
	if f.Requester != nil {
		q = q.Where("requester = ?", *f.Requester)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.CertificateID != nil {
		q = q.Where("certificate_id = ?", *f.CertificateID)
	}
	var out []*ExchangeRequest
	return out, q.Order("id asc").Find(&out).Error
}

func (s *PGStore) ListCertificates(ctx context.Context, f CertificateFilter) ([]*Certificate, error) {
	q := s.db.WithContext(ctx).Model(&Certificate{})
	if f.Owner != nil {
		q = q.Where("owner = ?", *f.Owner)
	}
	if f.Disposition != nil {
		q = q.Where("disposition = ?", *f.Disposition)
	}
	var out []*Certificate
	return out, q.Order("id asc").Find(&out).Error
}

func (s *PGStore) ListAuditRecords(ctx context.Context, f AuditRecordFilter) ([]*AuditRecord, error) {
	q := s.db.WithContext(ctx).Model(&AuditRecord{})
	if f.Auditor != nil {
		q = q.Where("auditor = ?", *f.Auditor)
	}
	if f.SubjectType != nil {
		q = q.Where("subject_type = ?", *f.SubjectType)
	}
	var out []*AuditRecord
	return out, q.Order("decided_at asc").Find(&out).Error
}

func (s *PGStore) Counters(ctx context.Context) (uint64, uint64, error) {
	var req, cert idCounter
	if err := s.db.WithContext(ctx).First(&req, "name = ?", counterRequests).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.WithContext(ctx).First(&cert, "name = ?", counterCertificates).Error; err != nil {
		return 0, 0, err
	}
	return req.Value + 1, cert.Value + 1, nil
}
