package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
)

// Ensure pgRelationRepo implements repository.RelationRepository.
var _ repository.RelationRepository = (*pgRelationRepo)(nil)

type pgRelationRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRelationRepository creates a PostgreSQL-backed relation repository.
// Array relations are TEXT[] columns; pointer relations are nullable TEXT.
func NewPostgresRelationRepository(pool *pgxpool.Pool) repository.RelationRepository {
	return &pgRelationRepo{pool: pool}
}

// idents returns the sanitized table, field and label identifiers.
func idents(rel domain.Relation) (table, field, label string) {
	return pgx.Identifier{rel.Collection}.Sanitize(),
		pgx.Identifier{rel.Field}.Sanitize(),
		pgx.Identifier{rel.LabelField}.Sanitize()
}

// liveCond matches documents holding a live reference to $1.
func liveCond(rel domain.Relation) string {
	_, field, _ := idents(rel)
	cond := field + " = $1"
	if rel.Multi() {
		cond = "$1 = ANY(" + field + ")"
	}
	if rel.ActiveOnly() {
		cond += " AND is_active"
	}
	return cond
}

func (r *pgRelationRepo) Count(ctx context.Context, rel domain.Relation, entityID string) (int, error) {
	table, _, _ := idents(rel)
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, table, liveCond(rel))

	var n int
	if err := r.pool.QueryRow(ctx, query, entityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", rel.Name, err)
	}
	return n, nil
}

func (r *pgRelationRepo) Related(ctx context.Context, rel domain.Relation, entityID string) ([]domain.RelatedSummary, error) {
	table, _, label := idents(rel)
	query := fmt.Sprintf(`SELECT id, %s FROM %s WHERE %s ORDER BY id`, label, table, liveCond(rel))

	rows, err := r.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("postgres: related %s: %w", rel.Name, err)
	}
	defer rows.Close()

	var out []domain.RelatedSummary
	for rows.Next() {
		s := domain.RelatedSummary{Field: rel.Field, Kind: rel.Kind}
		if err := rows.Scan(&s.ID, &s.Label); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", rel.Name, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// cascadeSet returns the SET clause of the relation's cascade operation.
// $2 is the archival timestamp.
func cascadeSet(rel domain.Relation) string {
	_, field, _ := idents(rel)
	switch rel.Kind {
	case domain.MembershipRemoval:
		return fmt.Sprintf("%s = array_remove(%s, $1)", field, field)
	case domain.ReferenceRemoval:
		return field + " = NULL"
	default:
		return "is_active = FALSE, archived_at = $2"
	}
}

func (r *pgRelationRepo) Apply(ctx context.Context, rel domain.Relation, entityID string, at time.Time) (int, error) {
	table, _, _ := idents(rel)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s`, table, cascadeSet(rel), liveCond(rel))
	args := []any{entityID}
	if rel.Kind == domain.DataArchival {
		args = append(args, at)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: apply %s: %w", rel.Name, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgRelationRepo) ApplyTo(ctx context.Context, rel domain.Relation, entityID, documentID string, at time.Time) (int, error) {
	table, _, _ := idents(rel)
	args := []any{entityID}
	if rel.Kind == domain.DataArchival {
		args = append(args, at)
	}
	args = append(args, documentID)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s AND id = $%d`, table, cascadeSet(rel), liveCond(rel), len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: apply %s to %s: %w", rel.Name, documentID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgRelationRepo) Reapply(ctx context.Context, rel domain.Relation, entityID string, documentIDs []string) ([]string, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	table, field, _ := idents(rel)
	var set, guard string
	switch rel.Kind {
	case domain.MembershipRemoval:
		set = fmt.Sprintf("%s = CASE WHEN $1 = ANY(%s) THEN %s ELSE array_append(%s, $1) END", field, field, field, field)
	case domain.ReferenceRemoval:
		set = field + " = $1"
		guard = fmt.Sprintf(" AND (%s IS NULL OR %s = $1)", field, field)
	default:
		set = field + " = $1, is_active = TRUE, archived_at = NULL"
		guard = fmt.Sprintf(" AND (%s IS NULL OR %s = $1)", field, field)
	}
	// Pointers now held by another entity are left alone.
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ANY($2)%s RETURNING id`, table, set, guard)

	rows, err := r.pool.Query(ctx, query, entityID, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: reapply %s: %w", rel.Name, err)
	}
	relinked, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: reapply %s: %w", rel.Name, err)
	}
	return relinked, nil
}

func (r *pgRelationRepo) Links(ctx context.Context, rel domain.Relation) ([]domain.Link, error) {
	table, field, _ := idents(rel)
	var query string
	if rel.Multi() {
		query = fmt.Sprintf(`SELECT id, unnest(%s) FROM %s`, field, table)
	} else {
		query = fmt.Sprintf(`SELECT id, %s FROM %s WHERE %s IS NOT NULL`, field, table, field)
	}
	if rel.ActiveOnly() {
		if rel.Multi() {
			query += " WHERE is_active"
		} else {
			query += " AND is_active"
		}
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: links %s: %w", rel.Name, err)
	}
	defer rows.Close()

	var out []domain.Link
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.DocumentID, &l.EntityID); err != nil {
			return nil, fmt.Errorf("postgres: scan link %s: %w", rel.Name, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *pgRelationRepo) DocumentStates(ctx context.Context, rel domain.Relation, documentIDs []string) (map[string]bool, error) {
	table, _, _ := idents(rel)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, is_active FROM %s WHERE id = ANY($1)`, table), documentIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s states: %w", rel.Name, err)
	}
	return collectStates(rows)
}
