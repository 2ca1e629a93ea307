package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

// Ensure pgStudentRepo implements repository.StudentRepository.
var _ repository.StudentRepository = (*pgStudentRepo)(nil)

type pgStudentRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresStudentRepository creates a PostgreSQL-backed student repository.
func NewPostgresStudentRepository(pool *pgxpool.Pool) repository.StudentRepository {
	return &pgStudentRepo{pool: pool}
}

const studentColumns = `id, first_name, last_name, email, instrument, grade,
	teacher_ids, orchestra_ids, is_active, created_at, deleted_at`

func scanStudent(row pgx.Row) (*domain.Student, error) {
	s := &domain.Student{}
	err := row.Scan(
		&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.Instrument, &s.Grade,
		&s.TeacherIDs, &s.OrchestraIDs, &s.IsActive, &s.CreatedAt, &s.DeletedAt,
	)
	return s, err
}

func (r *pgStudentRepo) GetStudent(ctx context.Context, id string) (*domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	s, err := scanStudent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get student: %w", err)
	}
	return s, nil
}

func (r *pgStudentRepo) DeactivateStudent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE students SET is_active = FALSE, deleted_at = $2 WHERE id = $1 AND is_active`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres: deactivate student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func (r *pgStudentRepo) RestoreStudent(ctx context.Context, s *domain.Student) error {
	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, NULL)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			instrument = EXCLUDED.instrument,
			grade = EXCLUDED.grade,
			teacher_ids = EXCLUDED.teacher_ids,
			orchestra_ids = EXCLUDED.orchestra_ids,
			is_active = TRUE,
			deleted_at = NULL`
	teacherIDs, orchestraIDs := s.TeacherIDs, s.OrchestraIDs
	if teacherIDs == nil {
		teacherIDs = []string{}
	}
	if orchestraIDs == nil {
		orchestraIDs = []string{}
	}
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.FirstName, s.LastName, s.Email, s.Instrument, s.Grade,
		teacherIDs, orchestraIDs, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: restore student: %w", err)
	}
	return nil
}

func (r *pgStudentRepo) ActiveStates(ctx context.Context, ids []string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, is_active FROM students WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: student states: %w", err)
	}
	return collectStates(rows)
}

func (r *pgStudentRepo) ListActive(ctx context.Context) ([]*domain.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list students: %w", err)
	}
	defer rows.Close()

	var out []*domain.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func collectStates(rows pgx.Rows) (map[string]bool, error) {
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var (
			id     string
			active bool
		)
		if err := rows.Scan(&id, &active); err != nil {
			return nil, fmt.Errorf("postgres: scan state: %w", err)
		}
		out[id] = active
	}
	return out, rows.Err()
}
