package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greentrace/lifecycle-engine/internal/fees"
)

func TestTransferOwnership(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cert := e.mintCertificate(t, 100, 80)

	require.NoError(t, e.registry.TransferOwnership(ctx, cert.ID, testBuyer))

	got, err := e.registry.Get(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, testBuyer, got.Owner)
	// Audited value travels with the certificate.
	assert.Equal(t, fees.NewAmountFromUnits(80).String(), got.ApprovedCarbonValue.String())
}

func TestTransferOwnershipValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cert := e.mintCertificate(t, 100, 80)

	err := e.registry.TransferOwnership(ctx, cert.ID, "")
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	err = e.registry.TransferOwnership(ctx, 999, testBuyer)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCertificateIDsAreSequential(t *testing.T) {
	e := newTestEngine(t)

	first := e.mintCertificate(t, 100, 80)
	second := e.mintCertificate(t, 200, 150)

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)
}

func TestIssueTxRefusesDuplicate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cert := e.mintCertificate(t, 100, 80)

	err := e.store.Update(ctx, []LockKey{{Kind: EntityMintRequest, ID: cert.SourceMintRequestID}}, func(tx Tx) error {
		_, err := e.registry.IssueTx(tx, cert.SourceMintRequestID, testRequester, fees.NewAmountFromUnits(80))
		return err
	})
	require.Error(t, err)
	assert.Equal(t, KindAlreadyIssued, KindOf(err))
}

func TestListCertificatesByOwner(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	first := e.mintCertificate(t, 100, 80)
	e.mintCertificate(t, 200, 150)

	require.NoError(t, e.registry.TransferOwnership(ctx, first.ID, testBuyer))

	owner := testBuyer
	owned, err := e.registry.List(ctx, CertificateFilter{Owner: &owner})
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, first.ID, owned[0].ID)
}
