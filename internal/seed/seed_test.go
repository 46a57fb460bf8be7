package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/bursar/internal/app/models"
	appRepos "github.com/yigit/bursar/internal/app/repositories"
	"github.com/yigit/bursar/internal/app/services"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newFeeService(repos *appRepos.Repositories) services.FeeService {
	clock := services.FixedClock(now)
	validator := services.NewFeeValidator(clock)
	return services.NewFeeService(services.FeeServiceDeps{
		Store:     repos.FeeStore,
		Students:  repos.StudentDirectory,
		Processor: services.NewPaymentProcessor(repos.FeeStore, validator, clock, 3),
		Validator: validator,
		Summaries: services.NewSummaryAggregator(repos.FeeStore, clock),
		Clock:     clock,
	})
}

func TestCreateDefaultDataIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := appRepos.NewMemoryRepositories()
	fees := newFeeService(repos)

	require.NoError(t, CreateDefaultData(ctx, repos.StudentDirectory, fees, []string{"S100", "S200"}, now, zerolog.Nop()))
	require.NoError(t, CreateDefaultData(ctx, repos.StudentDirectory, fees, []string{"S100", "S200"}, now, zerolog.Nop()))

	for _, id := range []string{"S100", "S200"} {
		obligations, err := fees.ListObligations(ctx, models.ObligationFilter{StudentID: id})
		require.NoError(t, err)
		require.Len(t, obligations, 1)
		assert.Equal(t, models.CategoryTuition, obligations[0].Category)
		assert.Equal(t, models.StatusPending, obligations[0].Status)
		assert.Equal(t, "1500", obligations[0].PrincipalAmount.String())
	}
}

func TestCreateDefaultDataUsesDefaultStudents(t *testing.T) {
	ctx := context.Background()
	repos := appRepos.NewMemoryRepositories()

	require.NoError(t, CreateDefaultData(ctx, repos.StudentDirectory, newFeeService(repos), nil, now, zerolog.Nop()))
	for _, id := range DefaultStudents {
		exists, err := repos.StudentDirectory.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, exists, id)
	}
}

type brokenRegistrar struct{}

func (brokenRegistrar) Register(context.Context, string, string) error {
	return errors.New("directory offline")
}

func TestCreateDefaultDataCollectsErrors(t *testing.T) {
	repos := appRepos.NewMemoryRepositories()
	err := CreateDefaultData(context.Background(), brokenRegistrar{}, newFeeService(repos), []string{"S1", "S2"}, now, zerolog.Nop())
	assert.ErrorContains(t, err, "directory offline")
}
