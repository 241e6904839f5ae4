package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"adoptik/petfeed/internal/feed"
	"adoptik/petfeed/internal/models"
)

// Counter names a per-video counter column.
type Counter string

const (
	CounterLikes  Counter = "likes"
	CounterShares Counter = "shares"
	CounterViews  Counter = "views"
)

// videoRow is one row of the videos/animals left join.
type videoRow struct {
	ID          int64          `db:"id"`
	VideoURL    sql.NullString `db:"video_url"`
	Likes       int            `db:"likes"`
	Shares      int            `db:"shares"`
	AnimalID    sql.NullInt64  `db:"animal_id"`
	Name        sql.NullString `db:"name"`
	Age         sql.NullInt64  `db:"age"`
	Species     sql.NullString `db:"species"`
	Location    sql.NullString `db:"location"`
	Description sql.NullString `db:"description"`
	ImageURL    sql.NullString `db:"image_url"`
}

func (row videoRow) item() feed.VideoItem {
	item := feed.VideoItem{
		ID:         strconv.FormatInt(row.ID, 10),
		Source:     orDefault(row.VideoURL, feed.DefaultVideoSource),
		LikeCount:  row.Likes,
		ShareCount: row.Shares,
		AnimalInfo: feed.PlaceholderAnimal(),
	}
	if row.AnimalID.Valid {
		item.AnimalInfo = AnimalInfo(&models.Animal{
			ID:          row.AnimalID.Int64,
			Name:        row.Name,
			Age:         row.Age,
			Species:     row.Species,
			Location:    row.Location,
			Description: row.Description,
			ImageURL:    row.ImageURL,
		})
	}
	return item
}

// AnimalInfo converts an animal row to its display form, filling missing
// columns with the "unavailable" texts.
func AnimalInfo(a *models.Animal) feed.AnimalInfo {
	return feed.AnimalInfo{
		ID:          a.ID,
		Name:        orDefault(a.Name, feed.MissingNameText),
		Age:         formatAge(a.Age),
		Species:     orDefault(a.Species, feed.UnavailableSpecies),
		Location:    orDefault(a.Location, feed.UnavailableLocation),
		Description: orDefault(a.Description, feed.UnavailableDescription),
		ImageURL:    orDefault(a.ImageURL, feed.PlaceholderImageURL),
	}
}

func orDefault(v sql.NullString, fallback string) string {
	if v.Valid && v.String != "" {
		return v.String
	}
	return fallback
}

func formatAge(age sql.NullInt64) string {
	switch {
	case !age.Valid:
		return feed.UnavailableAge
	case age.Int64 == 1:
		return "1 year"
	default:
		return fmt.Sprintf("%d years", age.Int64)
	}
}

// VideoPage returns page (1-based) of the feed, limit items per page, in
// insertion order so later pages are stable while new videos arrive.
func (r *Repository) VideoPage(ctx context.Context, page, limit int) ([]feed.VideoItem, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []feed.VideoItem{}, nil
	}
	// Pages whose offset does not fit an int lie past any real table.
	if page-1 > math.MaxInt/limit {
		return []feed.VideoItem{}, nil
	}

	var rows []videoRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT v.id, v.video_url, v.likes, v.shares,
		       a.id AS animal_id, a.name, a.age, a.species, a.location, a.description, a.image_url
		FROM videos v
		LEFT JOIN animals a ON a.id = v.animal_id
		ORDER BY v.id ASC
		LIMIT ? OFFSET ?`, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	items := make([]feed.VideoItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

// IncrementCounter adds one to the named counter of a video.
func (r *Repository) IncrementCounter(ctx context.Context, videoID int64, c Counter) error {
	var query string
	switch c {
	case CounterLikes:
		query = `UPDATE videos SET likes = likes + 1 WHERE id = ?`
	case CounterShares:
		query = `UPDATE videos SET shares = shares + 1 WHERE id = ?`
	case CounterViews:
		query = `UPDATE videos SET views = views + 1 WHERE id = ?`
	default:
		return fmt.Errorf("unknown counter %q", c)
	}

	res, err := r.db.ExecContext(ctx, query, videoID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", c, err)
	}
	return notFoundIfNone(res)
}

// GetVideo returns a video row by id.
func (r *Repository) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	var v models.Video
	err := r.db.GetContext(ctx, &v, `SELECT * FROM videos WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load video %d: %w", id, err)
	}
	return &v, nil
}

// AddVideo registers a video for an existing animal.
func (r *Repository) AddVideo(ctx context.Context, animalID int64, url string) (*models.Video, error) {
	if _, err := r.GetAnimal(ctx, animalID); err != nil {
		return nil, err
	}

	v := models.NewVideo(url)
	v.AnimalID = sql.NullInt64{Int64: animalID, Valid: true}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (video_url, animal_id, created_at) VALUES (?, ?, ?)`,
		v.VideoURL, v.AnimalID, v.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert video: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read video id: %w", err)
	}
	return v, nil
}

// InsertVideos writes ingested videos, skipping URLs that are already known.
// It returns how many rows were inserted and how many were duplicates.
func (r *Repository) InsertVideos(ctx context.Context, videos []models.Video) (inserted, duplicates int, err error) {
	if len(videos) == 0 {
		return 0, 0, nil
	}

	err = r.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT OR IGNORE INTO videos (video_url, animal_id, source_id, title, published_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare batch insert: %w", err)
		}
		defer stmt.Close()

		for _, v := range videos {
			res, err := stmt.ExecContext(ctx, v.VideoURL, v.AnimalID, v.SourceID, v.Title, v.PublishedAt, v.CreatedAt.UTC())
			if err != nil {
				return fmt.Errorf("failed to insert video %s: %w", v.VideoURL.String, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			if n > 0 {
				inserted++
			} else {
				duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, duplicates, nil
}

// PurgeAdoptedVideos deletes the videos of animals adopted before cutoff.
func (r *Repository) PurgeAdoptedVideos(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM videos
		WHERE animal_id IN (
			SELECT id FROM animals WHERE status = ? AND adopted_at IS NOT NULL AND adopted_at < ?
		)`, models.AnimalAdopted, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge videos: %w", err)
	}
	return res.RowsAffected()
}
