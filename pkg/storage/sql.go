package storage

import (
	"context"
	"database/sql"

	// We include the postresql driver in our implementation, so users can pick "postgres" via configuration.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func init() {
	if err := RegisterStorage(new(SQLDB)); err != nil {
		panic(err)
	}
}

const (
	SQLConnectionString OptionKey = "sql-connection-string-option"
	SQLDriverName       OptionKey = "sql-driver-name-option"
)

type SQLDB struct {
	db               *sql.DB
	connectionString string
}

func (s *SQLDB) Init(opts ...Option) error {
	connString, sqlDriverName, err := processSQLOptions(opts...)
	if err != nil {
		return err
	}
	s.connectionString = connString

	db, err := sql.Open(sqlDriverName, connString)
	if err != nil {
		return err
	}

	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS key_values (
    namespace varchar NOT NULL,
    key varchar NOT NULL,
    value bytea,
    PRIMARY KEY (namespace, key)
);`); err != nil {
		return errors.Wrap(err, "creating key_values table")
	}

	s.db = db
	return nil
}

func processSQLOptions(opts ...Option) (connString string, sqlDriverName string, err error) {
	connString, _, err = optionString(opts, SQLConnectionString)
	if err != nil {
		return "", "", err
	}
	sqlDriverName, _, err = optionString(opts, SQLDriverName)
	if err != nil {
		return "", "", err
	}
	if len(connString) == 0 || len(sqlDriverName) == 0 {
		return "", "", errors.New("sql connection string and driver name must not be empty")
	}
	return connString, sqlDriverName, nil
}

func (s *SQLDB) Type() Type {
	return DatabaseSQL
}

func (s *SQLDB) URI() string {
	return s.connectionString
}

func (s *SQLDB) IsOpen() bool {
	if err := s.db.Ping(); err != nil {
		logrus.WithError(err).Error("pinging db")
		return false
	}
	return true
}

func (s *SQLDB) Close() error {
	return s.db.Close()
}

func (s *SQLDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO key_values (namespace, key, value) VALUES ($1, $2, $3)
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value`, namespace, key, value)
	return err
}

func (s *SQLDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM key_values WHERE namespace = $1 AND key = $2", namespace, key).
		Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

func (s *SQLDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM key_values WHERE namespace = $1 AND key = $2)", namespace, key).
		Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *SQLDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM key_values WHERE namespace = $1", namespace)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err = rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

func (s *SQLDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM key_values WHERE namespace = $1 ORDER BY key", namespace)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLDB) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM key_values WHERE namespace = $1 AND key = $2", namespace, key)
	return err
}

func (s *SQLDB) DeleteNamespace(ctx context.Context, namespace string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM key_values WHERE namespace = $1", namespace)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Errorf("could not delete namespace<%s>, namespace does not exist", namespace)
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logrus.WithError(err).Error("closing rows")
	}
}

var _ ServiceStorage = (*SQLDB)(nil)
