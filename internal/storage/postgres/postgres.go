package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
	"github.com/motorscan/carhealth/internal/config"
	"github.com/motorscan/carhealth/internal/storage"
	"github.com/motorscan/carhealth/internal/types"
	"github.com/motorscan/carhealth/internal/types/media"
)

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		return nil, err
	}

	pg := &Postgres{Db: db}
	if err := pg.CreateTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS cars (
			id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			make VARCHAR(255) NOT NULL,
			model VARCHAR(255) NOT NULL,
			year INTEGER NOT NULL,
			mileage INTEGER NOT NULL DEFAULT 0,
			ownership_count INTEGER NOT NULL DEFAULT 1,
			status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'media_uploaded', 'submitted', 'analyzing', 'report_ready')),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS media (
			id UUID PRIMARY KEY,
			car_id UUID NOT NULL REFERENCES cars(id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL CHECK (type IN ('photo', 'video')),
			photo_type VARCHAR(50),
			file_name VARCHAR(255) NOT NULL,
			original_file_name VARCHAR(255) NOT NULL,
			mime_type VARCHAR(100) NOT NULL,
			file_size BIGINT NOT NULL,
			storage_key VARCHAR(1024) NOT NULL,
			storage_url TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT,
			width INTEGER,
			height INTEGER,
			duration DOUBLE PRECISION,
			is_uploaded BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_media_car_type ON media (car_id, type);`,
		`CREATE INDEX IF NOT EXISTS idx_media_car_photo_type ON media (car_id, photo_type);`,
		`CREATE INDEX IF NOT EXISTS idx_cars_user_created ON cars (user_id, created_at);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) CreateCar(userID string, req types.CarCreateRequest) (string, error) {
	id := uuid.New().String()
	ownershipCount := req.OwnershipCount
	if ownershipCount == 0 {
		ownershipCount = 1
	}

	query := `
	INSERT INTO cars (id, user_id, make, model, year, mileage, ownership_count, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.Db.Exec(query, id, userID, req.Make, req.Model, req.Year, req.Mileage, ownershipCount, types.CarStatusDraft)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (p *Postgres) GetCar(id string) (types.Car, error) {
	query := `
	SELECT id, user_id, make, model, year, mileage, ownership_count, status, created_at, updated_at
	FROM cars WHERE id = $1 AND deleted_at IS NULL
	`

	var car types.Car
	var createdAt, updatedAt time.Time
	err := p.Db.QueryRow(query, id).Scan(
		&car.ID, &car.UserID, &car.Make, &car.Model, &car.Year,
		&car.Mileage, &car.OwnershipCount, &car.Status, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Car{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Car{}, err
	}

	car.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	car.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	return car, nil
}

func (p *Postgres) UpdateCar(id string, req types.CarUpdateRequest) error {
	query := `
	UPDATE cars SET
		make = COALESCE(NULLIF($2, ''), make),
		model = COALESCE(NULLIF($3, ''), model),
		year = CASE WHEN $4 > 0 THEN $4 ELSE year END,
		mileage = CASE WHEN $5 > 0 THEN $5 ELSE mileage END,
		ownership_count = CASE WHEN $6 > 0 THEN $6 ELSE ownership_count END,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND deleted_at IS NULL
	`

	res, err := p.Db.Exec(query, id, req.Make, req.Model, req.Year, req.Mileage, req.OwnershipCount)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *Postgres) UpdateCarStatus(id string, status types.CarStatus) error {
	query := `UPDATE cars SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1 AND deleted_at IS NULL`

	res, err := p.Db.Exec(query, id, status)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *Postgres) ListCarsByUser(userID string) ([]types.Car, error) {
	query := `
	SELECT id, user_id, make, model, year, mileage, ownership_count, status, created_at, updated_at
	FROM cars WHERE user_id = $1 AND deleted_at IS NULL
	ORDER BY created_at DESC
	`

	rows, err := p.Db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []types.Car
	for rows.Next() {
		var car types.Car
		var createdAt, updatedAt time.Time
		if err := rows.Scan(
			&car.ID, &car.UserID, &car.Make, &car.Model, &car.Year,
			&car.Mileage, &car.OwnershipCount, &car.Status, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		car.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		car.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
		cars = append(cars, car)
	}
	return cars, rows.Err()
}

func (p *Postgres) CreateMedia(m media.Media) (string, error) {
	id := uuid.New().String()

	query := `
	INSERT INTO media (id, car_id, type, photo_type, file_name, original_file_name, mime_type,
		file_size, storage_key, storage_url, width, height, duration, is_uploaded)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, NULLIF($11, 0), NULLIF($12, 0), NULLIF($13, 0.0), FALSE)
	`

	_, err := p.Db.Exec(query, id, m.CarID, m.Type, string(m.PhotoType), m.FileName,
		m.OriginalFileName, m.MimeType, m.FileSize, m.StorageKey, m.StorageURL,
		m.Width, m.Height, m.Duration)
	if err != nil {
		return "", err
	}

	return id, nil
}

const mediaColumns = `id, car_id, type, COALESCE(photo_type, ''), file_name, original_file_name,
	mime_type, file_size, storage_key, storage_url, COALESCE(thumbnail_url, ''),
	COALESCE(width, 0), COALESCE(height, 0), COALESCE(duration, 0), is_uploaded, metadata, created_at`

func (p *Postgres) GetMedia(carID, mediaID string) (media.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1 AND car_id = $2 AND deleted_at IS NULL`

	m, err := scanMedia(p.Db.QueryRow(query, mediaID, carID))
	if errors.Is(err, sql.ErrNoRows) {
		return media.Media{}, storage.ErrNotFound
	}
	return m, err
}

func (p *Postgres) MarkUploaded(carID, mediaID, storageKey, storageURL, thumbnailURL string, meta *media.Metadata) error {
	var metaJSON interface{}
	if meta != nil {
		buf, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metaJSON = buf
	}

	query := `
	UPDATE media SET
		storage_key = $3,
		storage_url = $4,
		thumbnail_url = NULLIF($5, ''),
		metadata = COALESCE($6, metadata),
		is_uploaded = TRUE
	WHERE id = $1 AND car_id = $2 AND deleted_at IS NULL
	`

	res, err := p.Db.Exec(query, mediaID, carID, storageKey, storageURL, thumbnailURL, metaJSON)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *Postgres) ListMediaByCar(carID string) ([]media.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE car_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC`

	rows, err := p.Db.Query(query, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []media.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) SoftDeleteMedia(carID, mediaID string) error {
	query := `UPDATE media SET deleted_at = CURRENT_TIMESTAMP WHERE id = $1 AND car_id = $2 AND deleted_at IS NULL`

	res, err := p.Db.Exec(query, mediaID, carID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *Postgres) DeleteAbandonedUploads(olderThan time.Duration) (int64, error) {
	query := `
	UPDATE media SET deleted_at = CURRENT_TIMESTAMP
	WHERE is_uploaded = FALSE AND deleted_at IS NULL
	AND created_at < CURRENT_TIMESTAMP - make_interval(secs => $1)
	`

	res, err := p.Db.Exec(query, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedia(row rowScanner) (media.Media, error) {
	var m media.Media
	var metaJSON []byte
	err := row.Scan(
		&m.ID, &m.CarID, &m.Type, &m.PhotoType, &m.FileName, &m.OriginalFileName,
		&m.MimeType, &m.FileSize, &m.StorageKey, &m.StorageURL, &m.ThumbnailURL,
		&m.Width, &m.Height, &m.Duration, &m.IsUploaded, &metaJSON, &m.CreatedAt,
	)
	if err != nil {
		return media.Media{}, err
	}
	if len(metaJSON) > 0 {
		var meta media.Metadata
		if err := json.Unmarshal(metaJSON, &meta); err == nil {
			m.Metadata = &meta
		}
	}
	return m, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
