package seed

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/yigit/bursar/internal/app/models"
	appRepos "github.com/yigit/bursar/internal/app/repositories"
	"github.com/yigit/bursar/internal/app/services"
)

// StudentRegistrar adds students to the directory the ledger checks against
type StudentRegistrar interface {
	Register(ctx context.Context, studentID, fullName string) error
}

// DefaultStudents are registered when no demo students are configured
var DefaultStudents = []string{"S100", "S200", "S300"}

// CreateDefaultData registers the demo students and gives each newly registered
// student a tuition obligation due in thirty days. Students that already exist are
// left untouched, so running it twice does not duplicate obligations.
func CreateDefaultData(ctx context.Context, registrar StudentRegistrar, fees services.FeeService, studentIDs []string, now time.Time, lgr zerolog.Logger) error {
	if len(studentIDs) == 0 {
		studentIDs = DefaultStudents
	}

	lgr.Info().Int("students", len(studentIDs)).Msg("Checking/Creating demo ledger data...")
	var finalErr error // To collect potential errors without stopping the process

	for _, id := range studentIDs {
		err := registrar.Register(ctx, id, "Demo Student "+id)
		if errors.Is(err, appRepos.ErrStudentIDExists) {
			lgr.Debug().Str("studentID", id).Msg("Demo student already exists, skipping")
			continue
		}
		if err != nil {
			lgr.Error().Err(err).Str("studentID", id).Msg("Error registering demo student")
			finalErr = errors.Join(finalErr, err)
			continue
		}

		principal := decimal.NewFromInt(1500)
		due := now.AddDate(0, 0, 30)
		_, err = fees.CreateObligation(ctx, services.CreateObligationInput{
			StudentID:       id,
			Category:        models.CategoryTuition,
			PrincipalAmount: &principal,
			DueDate:         &due,
			Description:     "Demo tuition",
		})
		if err != nil {
			lgr.Error().Err(err).Str("studentID", id).Msg("Error creating demo obligation")
			finalErr = errors.Join(finalErr, err)
		}
	}

	lgr.Info().Msg("Demo ledger data check/creation finished.")
	return finalErr // Return collected errors, if any
}
