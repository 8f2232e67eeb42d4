package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// MemStore is the in-memory Store. Each entity id maps to its own lock, so
// operations on different entities run in parallel while two updates on the
// same entity serialize. Writes stage in the transaction and commit
// all-or-nothing.
type MemStore struct {
	lockMu sync.Mutex
	locks  map[LockKey]*sync.Mutex

	stateMu   sync.RWMutex
	mints     map[uint64]*MintRequest
	exchanges map[uint64]*ExchangeRequest
	certs     map[uint64]*Certificate
	audits    []*AuditRecord

	reqSeq  atomic.Uint64
	certSeq atomic.Uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		locks:     map[LockKey]*sync.Mutex{},
		mints:     map[uint64]*MintRequest{},
		exchanges: map[uint64]*ExchangeRequest{},
		certs:     map[uint64]*Certificate{},
	}
}

func (s *MemStore) lock(key LockKey) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// sortKeys dedupes and orders lock keys so concurrent multi-key updates
// always acquire in the same order.
func sortKeys(keys []LockKey) []LockKey {
	seen := map[LockKey]struct{}{}
	out := make([]LockKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemStore) Update(ctx context.Context, keys []LockKey, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ordered := sortKeys(keys)
	for _, k := range ordered {
		s.lock(k).Lock()
	}
	defer func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			s.lock(ordered[i]).Unlock()
		}
	}()

	tx := newMemTx(s, false)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(newMemTx(s, true))
}

type memTx struct {
	s        *MemStore
	readonly bool

	mints     map[uint64]*MintRequest
	exchanges map[uint64]*ExchangeRequest
	certs     map[uint64]*Certificate
	audits    []*AuditRecord
}

func newMemTx(s *MemStore, readonly bool) *memTx {
	return &memTx{
		s:         s,
		readonly:  readonly,
		mints:     map[uint64]*MintRequest{},
		exchanges: map[uint64]*ExchangeRequest{},
		certs:     map[uint64]*Certificate{},
	}
}

var errReadOnlyTx = errors.New("lifecycle: write in read-only transaction")

func (t *memTx) commit() {
	t.s.stateMu.Lock()
	defer t.s.stateMu.Unlock()
	for id, v := range t.mints {
		t.s.mints[id] = v
	}
	for id, v := range t.exchanges {
		t.s.exchanges[id] = v
	}
	for id, v := range t.certs {
		t.s.certs[id] = v
	}
	t.s.audits = append(t.s.audits, t.audits...)
}

func (t *memTx) MintRequest(id uint64) (*MintRequest, error) {
	if v, ok := t.mints[id]; ok {
		cp := *v
		return &cp, nil
	}
	t.s.stateMu.RLock()
	defer t.s.stateMu.RUnlock()
	v, ok := t.s.mints[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (t *memTx) SaveMintRequest(req *MintRequest) error {
	if t.readonly {
		return errReadOnlyTx
	}
	cp := *req
	t.mints[req.ID] = &cp
	return nil
}

func (t *memTx) ExchangeRequest(id uint64) (*ExchangeRequest, error) {
	if v, ok := t.exchanges[id]; ok {
		cp := *v
		return &cp, nil
	}
	t.s.stateMu.RLock()
	defer t.s.stateMu.RUnlock()
	v, ok := t.s.exchanges[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (t *memTx) SaveExchangeRequest(req *ExchangeRequest) error {
	if t.readonly {
		return errReadOnlyTx
	}
	cp := *req
	t.exchanges[req.ID] = &cp
	return nil
}

func (t *memTx) Certificate(id uint64) (*Certificate, error) {
	if v, ok := t.certs[id]; ok {
		cp := *v
		return &cp, nil
	}
	t.s.stateMu.RLock()
	defer t.s.stateMu.RUnlock()
	v, ok := t.s.certs[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (t *memTx) SaveCertificate(cert *Certificate) error {
	if t.readonly {
		return errReadOnlyTx
	}
	cp := *cert
	t.certs[cert.ID] = &cp
	return nil
}

func (t *memTx) CertificateBySource(sourceMintRequestID uint64) (*Certificate, error) {
	for _, v := range t.certs {
		if v.SourceMintRequestID == sourceMintRequestID {
			cp := *v
			return &cp, nil
		}
	}
	t.s.stateMu.RLock()
	defer t.s.stateMu.RUnlock()
	for id, v := range t.s.certs {
		if _, staged := t.certs[id]; staged {
			continue
		}
		if v.SourceMintRequestID == sourceMintRequestID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) PendingExchangeForCertificate(certificateID uint64) (*ExchangeRequest, error) {
	for _, v := range t.exchanges {
		if v.CertificateID == certificateID && v.Status == StatusPending {
			cp := *v
			return &cp, nil
		}
	}
	t.s.stateMu.RLock()
	defer t.s.stateMu.RUnlock()
	for id, v := range t.s.exchanges {
		if _, staged := t.exchanges[id]; staged {
			continue
		}
		if v.CertificateID == certificateID && v.Status == StatusPending {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) SaveAuditRecord(rec *AuditRecord) error {
	if t.readonly {
		return errReadOnlyTx
	}
	cp := *rec
	t.audits = append(t.audits, &cp)
	return nil
}

func (t *memTx) NextRequestID() (uint64, error) {
	if t.readonly {
		return 0, errReadOnlyTx
	}
	return t.s.reqSeq.Add(1), nil
}

func (t *memTx) NextCertificateID() (uint64, error) {
	if t.readonly {
		return 0, errReadOnlyTx
	}
	return t.s.certSeq.Add(1), nil
}

func (s *MemStore) ListMintRequests(ctx context.Context, f MintRequestFilter) ([]*MintRequest, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	var out []*MintRequest
	for _, v := range s.mints {
		if f.Requester != nil && v.Requester != *f.Requester {
			continue
		}
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListExchangeRequests(ctx context.Context, f ExchangeRequestFilter) ([]*ExchangeRequest, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	var out []*ExchangeRequest
	for _, v := range s.exchanges {
		if f.Requester != nil && v.Requester != *f.Requester {
			continue
		}
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		if f.CertificateID != nil && v.CertificateID != *f.CertificateID {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListCertificates(ctx context.Context, f CertificateFilter) ([]*Certificate, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	var out []*Certificate
	for _, v := range s.certs {
		if f.Owner != nil && v.Owner != *f.Owner {
			continue
		}
		if f.Disposition != nil && v.Disposition != *f.Disposition {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListAuditRecords(ctx context.Context, f AuditRecordFilter) ([]*AuditRecord, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	var out []*AuditRecord
	for _, v := range s.audits {
		if f.Auditor != nil && v.Auditor != *f.Auditor {
			continue
		}
		if f.SubjectType != nil && v.SubjectType != *f.SubjectType {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) Counters(ctx context.Context) (uint64, uint64, error) {
	return s.reqSeq.Load() + 1, s.certSeq.Load() + 1, nil
}
