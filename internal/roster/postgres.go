package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const studentColumns = `register_number, name, department, batch_year, section`

// PostgresStore reads the roster from the records database.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgres connects to the roster database and waits for it to become
// reachable, backing off between attempts.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster database: %w", err)
	}

	var pingErr error
	for attempt := 1; attempt <= 10; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("roster database unreachable: %w", pingErr)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) StudentsBySections(ctx context.Context, department string, batchYear int, sections []string) ([]Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE department = ? AND batch_year = ?`
	args := []interface{}{department, batchYear}

	if len(sections) > 0 {
		var err error
		query, args, err = sqlx.In(query+` AND section IN (?)`, department, batchYear, sections)
		if err != nil {
			return nil, fmt.Errorf("failed to build roster query: %w", err)
		}
	}
	query = s.db.Rebind(query + ` ORDER BY register_number`)

	var students []Student
	if err := s.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", err)
	}
	return students, nil
}

func (s *PostgresStore) StudentByRegisterNumber(ctx context.Context, registerNumber string) (Student, error) {
	query := s.db.Rebind(`SELECT ` + studentColumns + ` FROM students WHERE register_number = ?`)

	var st Student
	err := s.db.GetContext(ctx, &st, query, registerNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	if err != nil {
		return Student{}, fmt.Errorf("failed to look up student %s: %w", registerNumber, err)
	}
	return st, nil
}
