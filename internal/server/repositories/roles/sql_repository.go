package roles

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/dbx"
	"github.com/dmitrijs2005/taskauth/internal/server/models"
	"github.com/georgysavva/scany/v2/sqlscan"
)

type SQLRepository struct {
	db dbx.DBTX
	sb squirrel.StatementBuilderType
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, sb: d.Builder()}
}

func (r *SQLRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	query, args, err := r.sb.Select("id", "name").
		From("roles").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	role := &models.Role{}
	if err := sqlscan.Get(ctx, r.db, role, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func (r *SQLRepository) Ensure(ctx context.Context, name string) (*models.Role, error) {
	query, args, err := r.sb.Insert("roles").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return r.FindByName(ctx, name)
}

func (r *SQLRepository) ReplaceRole(ctx context.Context, userID, roleID int64) error {
	query, args, err := r.sb.Delete("user_roles").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query, args, err = r.sb.Insert("user_roles").
		Columns("user_id", "role_id").
		Values(userID, roleID).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *SQLRepository) ListRoleNames(ctx context.Context, userID int64) ([]string, error) {
	query, args, err := r.sb.Select("r.name").
		From("roles r").
		Join("user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	names := []string{}
	if err := sqlscan.Select(ctx, r.db, &names, query, args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return names, nil
}

func (r *SQLRepository) HasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	n, err := r.count(ctx, squirrel.Eq{"user_id": userID, "role_id": roleID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLRepository) CountUsersWithRole(ctx context.Context, roleID int64) (int64, error) {
	return r.count(ctx, squirrel.Eq{"role_id": roleID})
}

func (r *SQLRepository) count(ctx context.Context, where squirrel.Eq) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").
		From("user_roles").
		Where(where).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
