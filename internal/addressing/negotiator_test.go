package addressing

import (
	"context"
	"errors"
	"testing"

	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPool struct {
	mock.Mock
}

func (m *MockPool) RecommendIPs(ctx context.Context, locationID int64) ([]coreapi.IPRecommendation, error) {
	args := m.Called(locationID)
	recs, _ := args.Get(0).([]coreapi.IPRecommendation)
	return recs, args.Error(1)
}

func (m *MockPool) ValidateIPs(ctx context.Context, locationID int64, ips []string) ([]coreapi.IPValidation, error) {
	args := m.Called(locationID, ips)
	res, _ := args.Get(0).([]coreapi.IPValidation)
	return res, args.Error(1)
}

func TestShouldRecommend(t *testing.T) {
	assert.True(t, ShouldRecommend(ModeCreate))
	assert.False(t, ShouldRecommend(ModeEdit))
}

func TestRecommend(t *testing.T) {
	pool := new(MockPool)
	pool.On("RecommendIPs", int64(1)).Return([]coreapi.IPRecommendation{
		{NetworkPart: "10.1.0.", NetworkPrefix: 24, ModifiablePart: "2"},
	}, nil)

	recs, err := NewNegotiator(pool).Recommend(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "10.1.0.2", recs[0].Address())
}

func TestRevalidateAllAvailable(t *testing.T) {
	pool := new(MockPool)
	pool.On("ValidateIPs", int64(1), []string{"10.1.0.2", "10.2.0.2"}).
		Return([]coreapi.IPValidation{{Available: true, Valid: true}, {Available: true, Valid: true}}, nil)

	err := NewNegotiator(pool).Revalidate(context.Background(), 1, []string{"10.1.0.2", "10.2.0.2"}, nil)
	assert.NoError(t, err)
	pool.AssertExpectations(t)
}

func TestRevalidateMapsFailuresToIndexes(t *testing.T) {
	pool := new(MockPool)
	pool.On("ValidateIPs", int64(1), []string{"10.1.0.2", "10.1.0.300", "10.1.0.4"}).
		Return([]coreapi.IPValidation{
			{Available: false, Valid: true},
			{Available: false, Valid: false},
			{Available: true, Valid: true},
		}, nil)

	err := NewNegotiator(pool).Revalidate(context.Background(), 1, []string{"10.1.0.2", "10.1.0.300", "10.1.0.4"}, nil)
	require.Error(t, err)

	var addrErrs AddressErrors
	require.ErrorAs(t, err, &addrErrs)
	assert.Equal(t, AddressErrors{0: CodeReservedIP, 1: CodeInvalidIP}, addrErrs)
	assert.Equal(t, "address validation failed: 0=reservedIp, 1=invalidIp", err.Error())
}

func TestRevalidateSkipsOwnReservation(t *testing.T) {
	pool := new(MockPool)
	pool.On("ValidateIPs", int64(2), []string{"10.1.0.9"}).
		Return([]coreapi.IPValidation{{Available: false, Valid: true}}, nil)

	err := NewNegotiator(pool).Revalidate(context.Background(), 2,
		[]string{"10.1.0.5", "10.1.0.9"},
		[]string{"10.1.0.5"})

	var addrErrs AddressErrors
	require.ErrorAs(t, err, &addrErrs)
	assert.Equal(t, AddressErrors{1: CodeReservedIP}, addrErrs)
	pool.AssertExpectations(t)
}

func TestRevalidateUnchangedEditSkipsPool(t *testing.T) {
	pool := new(MockPool)

	err := NewNegotiator(pool).Revalidate(context.Background(), 2, []string{"10.1.0.5"}, []string{"10.1.0.5"})
	assert.NoError(t, err)
	pool.AssertNotCalled(t, "ValidateIPs", mock.Anything, mock.Anything)
}

func TestRevalidateEmptyCandidate(t *testing.T) {
	pool := new(MockPool)

	err := NewNegotiator(pool).Revalidate(context.Background(), 1, []string{"  "}, nil)

	var addrErrs AddressErrors
	require.ErrorAs(t, err, &addrErrs)
	assert.Equal(t, CodeInvalidIP, addrErrs[0])
	pool.AssertNotCalled(t, "ValidateIPs", mock.Anything, mock.Anything)
}

func TestRevalidateTransportFailureBlocks(t *testing.T) {
	pool := new(MockPool)
	pool.On("ValidateIPs", int64(1), []string{"10.1.0.2"}).Return(nil, errors.New("connection refused"))

	err := NewNegotiator(pool).Revalidate(context.Background(), 1, []string{"10.1.0.2"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationUnavailable)

	var addrErrs AddressErrors
	assert.False(t, errors.As(err, &addrErrs))
}

func TestRevalidateRejectsMisalignedResults(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		results    []coreapi.IPValidation
	}{
		{
			name:       "too few results",
			candidates: []string{"10.1.0.2", "10.1.0.3"},
			results:    []coreapi.IPValidation{{Available: true, Valid: true}},
		},
		{
			name:       "too many results",
			candidates: []string{"10.1.0.2"},
			results:    []coreapi.IPValidation{{Available: true, Valid: true}, {Available: false, Valid: false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := new(MockPool)
			pool.On("ValidateIPs", int64(1), tt.candidates).Return(tt.results, nil)

			var err error
			require.NotPanics(t, func() {
				err = NewNegotiator(pool).Revalidate(context.Background(), 1, tt.candidates, nil)
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationUnavailable)

			var addrErrs AddressErrors
			assert.False(t, errors.As(err, &addrErrs))
		})
	}
}

func TestValidateIsRepeatable(t *testing.T) {
	pool := new(MockPool)
	pool.On("ValidateIPs", int64(1), []string{"10.1.0.2"}).
		Return([]coreapi.IPValidation{{Available: true, Valid: true}}, nil)

	n := NewNegotiator(pool)
	first, err := n.Validate(context.Background(), 1, []string{"10.1.0.2"})
	require.NoError(t, err)
	second, err := n.Validate(context.Background(), 1, []string{"10.1.0.2"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	pool.AssertNumberOfCalls(t, "ValidateIPs", 2)
}

func TestTrackerLatestWins(t *testing.T) {
	var tr Tracker

	a := tr.Begin(1)
	b := tr.Begin(2)

	assert.False(t, tr.Current(a))
	assert.True(t, tr.Current(b))
	assert.Equal(t, int64(2), b.LocationID)

	tr.Invalidate()
	assert.False(t, tr.Current(b))
}
