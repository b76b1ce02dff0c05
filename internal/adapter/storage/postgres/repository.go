package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	storage "github.com/fogsched/fogsched/config/storage/postgresql"
	"github.com/fogsched/fogsched/internal/core/domain"
)

// taskStore reads pending offload requests and writes their outcomes back.
// It implements port.TaskSource and port.TaskRecorder.
type taskStore struct {
	db  *storage.DB
	log *zap.Logger
}

// NewTaskStore creates a new postgres task store
func NewTaskStore(db *storage.DB, log *zap.Logger) *taskStore {
	return &taskStore{
		db:  db,
		log: log,
	}
}

// Save inserts one pending task
func (r *taskStore) Save(ctx context.Context, task *domain.Task) error {
	var lat, lon *float64
	if task.Location != nil {
		lat, lon = &task.Location.Lat, &task.Location.Lon
	}

	query, args, err := r.db.QueryBuilder.
		Insert("tasks").
		Columns("id", "name", "size_mi", "required_mips", "required_memory_mb",
			"required_bw_mbps", "required_storage_gb", "lat", "lon",
			"data_type", "device_type", "status", "created_at", "updated_at").
		Values(task.ID, task.Name, task.SizeMI, task.Required.MIPS, task.Required.MemoryMB,
			task.Required.BandwidthMbps, task.Required.StorageGB, lat, lon,
			task.DataType, task.DeviceType, string(domain.TaskStatusPending), task.CreatedAt, time.Now()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build task insert: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		r.log.Error("Failed to save task", zap.String("task_id", task.ID), zap.Error(err))
		return err
	}
	return nil
}

// GetByID fetches one task regardless of status
func (r *taskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query, args, err := r.db.QueryBuilder.
		Select("id", "name", "size_mi", "required_mips", "required_memory_mb",
			"required_bw_mbps", "required_storage_gb", "lat", "lon",
			"data_type", "device_type", "created_at").
		From("tasks").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task select: %w", err)
	}

	row := r.db.QueryRow(ctx, query, args...)
	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Load returns every pending task ordered by creation time. Ties on the
// timestamp fall back to the id so the order is reproducible.
func (r *taskStore) Load(ctx context.Context) ([]*domain.Task, error) {
	query, args, err := r.db.QueryBuilder.
		Select("id", "name", "size_mi", "required_mips", "required_memory_mb",
			"required_bw_mbps", "required_storage_gb", "lat", "lon",
			"data_type", "device_type", "created_at").
		From("tasks").
		Where(squirrel.Eq{"status": string(domain.TaskStatusPending)}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.log.Info("Loaded pending tasks", zap.Int("count", len(tasks)))
	return tasks, nil
}

// RecordCompletion stores the completion event on the task row
func (r *taskStore) RecordCompletion(ctx context.Context, event domain.CompletionEvent) error {
	query, args, err := r.db.QueryBuilder.
		Update("tasks").
		Set("status", string(domain.TaskStatusCompleted)).
		Set("node", event.Node).
		Set("queue_seconds", event.QueueTime.Seconds()).
		Set("transmission_seconds", event.TransmissionTime.Seconds()).
		Set("processing_seconds", event.ProcessingTime.Seconds()).
		Set("total_seconds", event.TotalTime.Seconds()).
		Set("energy_wh", event.EnergyWh).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": event.TaskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build completion update: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		r.log.Error("Failed to record completion",
			zap.String("task_id", event.TaskID),
			zap.Error(err))
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t        domain.Task
		lat, lon *float64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.SizeMI, &t.Required.MIPS, &t.Required.MemoryMB,
		&t.Required.BandwidthMbps, &t.Required.StorageGB, &lat, &lon,
		&t.DataType, &t.DeviceType, &t.CreatedAt); err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		t.Location = &domain.Location{Lat: *lat, Lon: *lon}
	}
	return &t, nil
}
