package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alexandratechlab/invoicehub/internal/queue"
)

// QueueStore implements queue.Store on PostgreSQL.
type QueueStore struct {
	db *sql.DB
}

var _ queue.Store = (*QueueStore)(nil)

// Queue returns the processing queue persistence bound to the store's
// connection pool.
func (s *Store) Queue() *QueueStore {
	return &QueueStore{db: s.db}
}

const taskColumns = `id, client_id, organization_id, task_type, status, priority, attempts, max_attempts,
	file_path, source, source_reference, payload, result, error_message, created_at, started_at, completed_at`

func (q *QueueStore) Enqueue(ctx context.Context, task *queue.Task) error {
	payload, err := encodeJSON(task.Payload)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		insert into processing_queue(id, client_id, organization_id, task_type, status, priority, attempts, max_attempts,
			file_path, source, source_reference, payload, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, task.ID, task.ClientID, task.OrganizationID, task.Type, task.Status, task.Priority, task.Attempts, task.MaxAttempts,
		nullString(task.FilePath), nullString(task.Source), nullString(task.SourceReference), payload, task.CreatedAt)
	return err
}

func (q *QueueStore) Get(ctx context.Context, id string) (*queue.Task, error) {
	row := q.db.QueryRowContext(ctx, `select `+taskColumns+` from processing_queue where id=$1`, id)
	return scanTask(row)
}

func (q *QueueStore) ListByClient(ctx context.Context, clientID string, limit int) ([]*queue.Task, error) {
	rows, err := q.db.QueryContext(ctx, `
		select `+taskColumns+` from processing_queue
		where client_id=$1 order by created_at desc limit $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (q *QueueStore) ListByOrganization(ctx context.Context, organizationID string, status string, limit int) ([]*queue.Task, error) {
	rows, err := q.db.QueryContext(ctx, `
		select `+taskColumns+` from processing_queue
		where organization_id=$1 and ($2='' or status=$2)
		order by created_at desc limit $3
	`, organizationID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// NextPending claims the best pending task with a skip-locked update so
// concurrent workers never double-claim.
func (q *QueueStore) NextPending(ctx context.Context, at time.Time) (*queue.Task, error) {
	row := q.db.QueryRowContext(ctx, `
		update processing_queue set status='processing', attempts=attempts+1, started_at=$1
		where id = (
			select id from processing_queue
			where status='pending'
			order by priority desc, created_at asc
			for update skip locked
			limit 1
		)
		returning `+taskColumns+`
	`, at)
	return scanTask(row)
}

func (q *QueueStore) Update(ctx context.Context, task *queue.Task) error {
	result, err := encodeJSON(task.Result)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `
		update processing_queue
		set status=$2, attempts=$3, result=$4, error_message=$5, started_at=$6, completed_at=$7
		where id=$1
	`, task.ID, task.Status, task.Attempts, result, nullString(task.ErrorMessage),
		nullTime(task.StartedAt), nullTime(task.CompletedAt))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func collectTasks(rows *sql.Rows) ([]*queue.Task, error) {
	var out []*queue.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (*queue.Task, error) {
	var t queue.Task
	var filePath, source, sourceRef, errMsg sql.NullString
	var payload, result []byte
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.ClientID, &t.OrganizationID, &t.Type, &t.Status, &t.Priority, &t.Attempts, &t.MaxAttempts,
		&filePath, &source, &sourceRef, &payload, &result, &errMsg, &t.CreatedAt, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.FilePath = filePath.String
	t.Source = source.String
	t.SourceReference = sourceRef.String
	t.ErrorMessage = errMsg.String
	t.StartedAt = timePtr(startedAt)
	t.CompletedAt = timePtr(completedAt)
	if t.Payload, err = decodeMap(payload); err != nil {
		return nil, err
	}
	if t.Result, err = decodeMap(result); err != nil {
		return nil, err
	}
	return &t, nil
}
