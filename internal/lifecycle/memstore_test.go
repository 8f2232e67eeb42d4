package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greentrace/lifecycle-engine/internal/fees"
)

func TestMemStoreUpdateCommitsAllOrNothing(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, []LockKey{{Kind: EntityMintRequest, ID: 1}}, func(tx Tx) error {
		if err := tx.SaveMintRequest(&MintRequest{ID: 1, Requester: testRequester, Status: StatusPending}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The failed update left no trace.
	reqs, err := s.ListMintRequests(ctx, MintRequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestMemStoreStagedWritesAreVisibleInTx(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	err := s.Update(ctx, []LockKey{{Kind: EntityCertificate, ID: 7}}, func(tx Tx) error {
		if err := tx.SaveCertificate(&Certificate{
			ID:                  7,
			Owner:               testRequester,
			SourceMintRequestID: 3,
			ApprovedCarbonValue: fees.NewAmountFromUnits(10),
			Disposition:         DispositionActive,
		}); err != nil {
			return err
		}
		got, err := tx.CertificateBySource(3)
		if err != nil {
			return err
		}
		require.NotNil(t, got)
		assert.Equal(t, uint64(7), got.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemStoreViewRejectsWrites(t *testing.T) {
	s := NewMemStore()

	err := s.View(context.Background(), func(tx Tx) error {
		return tx.SaveMintRequest(&MintRequest{ID: 1})
	})
	require.Error(t, err)
}

func TestMemStoreSerializesSameKey(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	key := []LockKey{{Kind: EntityMintRequest, ID: 1}}

	require.NoError(t, s.Update(ctx, key, func(tx Tx) error {
		return tx.SaveMintRequest(&MintRequest{ID: 1, ClaimedCarbonReduction: fees.Zero(), RequestedFee: fees.Zero()})
	}))

	// Many concurrent read-modify-write cycles on one entity. Serialization
	// means no lost updates.
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, key, func(tx Tx) error {
				req, err := tx.MintRequest(1)
				if err != nil {
					return err
				}
				req.ClaimedCarbonReduction = req.ClaimedCarbonReduction.Add(fees.NewAmountFromUnits(1))
				return tx.SaveMintRequest(req)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	err := s.View(ctx, func(tx Tx) error {
		req, err := tx.MintRequest(1)
		if err != nil {
			return err
		}
		assert.Equal(t, fees.NewAmountFromUnits(n).String(), req.ClaimedCarbonReduction.String())
		return nil
	})
	require.NoError(t, err)
}

func TestMemStoreIDAllocation(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	var first, second, cert uint64
	err := s.Update(ctx, nil, func(tx Tx) error {
		var err error
		if first, err = tx.NextRequestID(); err != nil {
			return err
		}
		if second, err = tx.NextRequestID(); err != nil {
			return err
		}
		cert, err = tx.NextCertificateID()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
	assert.Equal(t, uint64(1), cert)

	nextReq, nextCert, err := s.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nextReq)
	assert.Equal(t, uint64(2), nextCert)
}

func TestMemStoreUpdateHonorsContext(t *testing.T) {
	s := NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Update(ctx, nil, func(tx Tx) error {
		t.Fatal("update ran with canceled context")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
