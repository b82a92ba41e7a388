package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    null.TimeFrom(usr.CreatedAt),
		UpdatedAt:    null.TimeFrom(usr.UpdatedAt),
	}
	if row.Roles == nil {
		row.Roles = pq.StringArray{}
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin.SetValid(usr.LastLogin)
	}
	return row
}

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	q, args, err := sqlx.In(
		`SELECT username, email FROM "user" WHERE (username = ? OR email = ?)`+exclClause(exclIDs),
		buildArgs(username, email, exclIDs)...,
	)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	rows, err := repo.db.Query(repo.db.Rebind(q), args...)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if uname == username {
			return user.ErrUsernameExists
		}
		if mail == email {
			return user.ErrEmailExists
		}
	}
	return rows.Err()
}

func exclClause(exclIDs []string) string {
	if len(exclIDs) == 0 {
		return ""
	}
	return ` AND id NOT IN (?)`
}

func buildArgs(username, email string, exclIDs []string) []interface{} {
	args := []interface{}{username, email}
	if len(exclIDs) > 0 {
		args = append(args, exclIDs)
	}
	return args
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := newUserRow(usr)
	_, err := repo.db.NamedExec(
		`INSERT INTO "user" (`+userColumns+`)
		 VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, `SELECT `+userColumns+` FROM "user"`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	return repo.getUser(`SELECT `+userColumns+` FROM "user" WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.getUser(`SELECT `+userColumns+` FROM "user" WHERE username = $1`, username)
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	return repo.getUser(`SELECT `+userColumns+` FROM "user" WHERE email = $1`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.getUser(`SELECT `+userColumns+` FROM "user" WHERE username = $1 OR email = $1`, username)
}

func (repo *userRepository) getUser(query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toDomain(), nil
}

func (repo *userRepository) FilterUsers(filter user.QueryFilter) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM "user" WHERE 1=1`
	var args []interface{}

	if filter.Search != "" {
		query += ` AND (name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`
		kw := "%" + filter.Search + "%"
		args = append(args, kw, kw, kw)
	}
	if len(filter.Roles) > 0 {
		// any role with one of the given prefixes
		clauses := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			clauses = append(clauses, `EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE ?)`)
			args = append(args, role+"%")
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}
	if filter.IsActive != nil {
		query += ` AND is_active = ?`
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, filter.CreatedTo.UTC())
	}

	var rows []userRow
	if err := repo.db.Select(&rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	orig, err := repo.GetUserByID(usr.ID)
	if err != nil {
		return user.User{}, err
	}

	// only save set fields
	if usr.Roles != nil {
		orig.Roles = usr.Roles
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	if usr.Name != "" {
		orig.Name = usr.Name
	}
	if usr.Username != "" {
		orig.Username = usr.Username
	}
	if usr.Email != "" {
		orig.Email = usr.Email
	}
	if !usr.UpdatedAt.IsZero() {
		orig.UpdatedAt = usr.UpdatedAt
	}
	if !usr.LastLogin.IsZero() {
		orig.LastLogin = usr.LastLogin
	}

	row := newUserRow(orig)
	_, err = repo.db.NamedExec(
		`UPDATE "user"
		 SET name = :name, username = :username, email = :email, is_active = :is_active,
		     roles = :roles, password_hash = :password_hash, updated_at = :updated_at,
		     last_login = :last_login
		 WHERE id = :id`,
		row,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return orig, nil
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users
}
