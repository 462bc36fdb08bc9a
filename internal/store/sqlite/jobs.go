package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
)

// jobColumns is the ordered list of columns selected in job queries.
// Must match the scan order in scanJob.
const jobColumns = `id, filename, book_id, status, error, created_at, updated_at`

// defaultJobLimit caps ListJobs when no limit is given.
const defaultJobLimit = 50

func scanJob(scanner interface{ Scan(dest ...any) error }) (*domain.Job, error) {
	var (
		j         domain.Job
		bookID    sql.NullString
		status    string
		errMsg    sql.NullString
		createdAt string
		updatedAt string
	)

	if err := scanner.Scan(&j.ID, &j.Filename, &bookID, &status, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	j.BookID = bookID.String
	j.Error = errMsg.String
	return &j, nil
}

// CreateJob inserts a new job. Timestamps default to now.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	if job.Status == "" {
		job.Status = domain.JobPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, filename, book_id, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Filename,
		nullString(job.BookID),
		string(job.Status),
		nullString(job.Error),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.Conflictf("job %s already exists", job.ID)
		}
		return err
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns the most recent jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = defaultJobLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only

	jobs := []*domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJobStatus sets the status and error message of a job.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), nullString(errMsg), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("job %s not found", id)
	}
	return nil
}

// CompleteJobsForBook marks every started job of a book completed and returns
// how many changed.
func (s *Store) CompleteJobsForBook(ctx context.Context, bookID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE book_id = ? AND status = ?`,
		string(domain.JobCompleted), formatTime(time.Now()), bookID, string(domain.JobStarted))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("jobs completed", "book_id", bookID, "count", n)
	}
	return n, nil
}
