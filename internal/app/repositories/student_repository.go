package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/dberrors"
	"github.com/yigit/bursar/internal/pkg/logger"
)

// ErrStudentIDExists is returned when registering a student id twice
var ErrStudentIDExists = errors.New("student ID already in use")

// StudentRepository reads the student directory table
type StudentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

var _ StudentDirectory = (*StudentRepository)(nil)

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Exists checks whether a student id is registered
func (r *StudentRepository) Exists(ctx context.Context, studentID string) (bool, error) {
	sql, args, err := r.sb.Select("1").
		Prefix("SELECT EXISTS (").
		From("students").
		Where(squirrel.Eq{"student_id": studentID}).
		Suffix(")").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building student exists SQL")
		return false, fmt.Errorf("failed to build student exists query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		logger.Error().Err(err).Str("studentID", studentID).Msg("Error checking if student exists")
		return false, apperrors.NewStoreFailure("check student", err)
	}

	return exists, nil
}

// Register adds a student id to the directory
func (r *StudentRepository) Register(ctx context.Context, studentID, fullName string) error {
	sql, args, err := r.sb.Insert("students").
		Columns("student_id", "full_name").
		Values(studentID, fullName).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building register student SQL")
		return fmt.Errorf("failed to build register student query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_pkey") {
			return ErrStudentIDExists
		}
		logger.Error().Err(err).Str("studentID", studentID).Msg("Error executing register student query")
		return fmt.Errorf("error registering student: %w", err)
	}

	logger.Info().Str("studentID", studentID).Msg("Student registered successfully")
	return nil
}

// MemoryStudentDirectory is a StudentDirectory backed by a set of ids
type MemoryStudentDirectory struct {
	mu  sync.RWMutex
	ids map[string]string
}

var _ StudentDirectory = (*MemoryStudentDirectory)(nil)

// NewMemoryStudentDirectory creates a directory that knows the given ids
func NewMemoryStudentDirectory(studentIDs ...string) *MemoryStudentDirectory {
	d := &MemoryStudentDirectory{ids: make(map[string]string, len(studentIDs))}
	for _, id := range studentIDs {
		d.ids[id] = ""
	}
	return d
}

// Exists checks whether a student id is registered
func (d *MemoryStudentDirectory) Exists(_ context.Context, studentID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[studentID]
	return ok, nil
}

// Register adds a student id to the directory
func (d *MemoryStudentDirectory) Register(_ context.Context, studentID, fullName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ids[studentID]; ok {
		return ErrStudentIDExists
	}
	d.ids[studentID] = fullName
	return nil
}
