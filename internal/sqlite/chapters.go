package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

const chapterColumns = `id, series_id, chapter_number, title, pages, total_pages, is_locked, unlock_cost, created_at, updated_at`

// CreateChapter inserts a chapter. TotalPages is always derived from Pages.
// When (SeriesID, Number) already exists the insert is rejected by the
// unique index and *types.DuplicateChapterError is returned.
func (b *Backend) CreateChapter(ctx context.Context, in types.ChapterInput) (*types.Chapter, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	pages, err := encodePages(in.Pages)
	if err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := b.now().UTC()
	stamp := formatTime(now)

	_, err = b.q.ExecContext(ctx,
		`INSERT INTO chapters (`+chapterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.SeriesID, in.Number, in.Title, pages, in.TotalPages,
		boolToInt(in.Locked), in.UnlockCost, stamp, stamp,
	)
	if err != nil {
		return nil, translateChapterInsertError(err, types.ChapterKey{SeriesID: in.SeriesID, Number: in.Number})
	}

	return &types.Chapter{
		ID:         id,
		SeriesID:   in.SeriesID,
		Number:     in.Number,
		Title:      in.Title,
		Pages:      append([]string(nil), in.Pages...),
		TotalPages: in.TotalPages,
		Locked:     in.Locked,
		UnlockCost: in.UnlockCost,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// translateChapterInsertError is the one place driver errors from the
// chapter insert are turned into domain errors.
func translateChapterInsertError(err error, key types.ChapterKey) error {
	if isUniqueViolation(err) {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "series_id") && strings.Contains(msg, "chapter_number") {
			duplicateChapters.Inc()
			return &types.DuplicateChapterError{Key: key}
		}
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %s", types.ErrSeriesNotFound, key.SeriesID)
	}
	return fmt.Errorf("inserting chapter: %w", err)
}

func encodePages(pages []string) (string, error) {
	if pages == nil {
		pages = []string{}
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return "", fmt.Errorf("encoding pages: %w", err)
	}
	return string(data), nil
}

// ChapterExists reports whether (seriesID, number) is taken. The answer can
// be stale by the time a CreateChapter runs; the insert is what decides.
func (b *Backend) ChapterExists(ctx context.Context, seriesID, number string) (bool, error) {
	if err := b.checkOpen(); err != nil {
		return false, err
	}
	var exists int
	err := b.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM chapters WHERE series_id = ? AND chapter_number = ?)",
		strings.TrimSpace(seriesID), strings.TrimSpace(number)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking chapter: %w", err)
	}
	return exists != 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChapter(row rowScanner) (*types.Chapter, error) {
	var (
		c                    types.Chapter
		pages                sql.NullString
		locked               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.SeriesID, &c.Number, &c.Title, &pages, &c.TotalPages,
		&locked, &c.UnlockCost, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if pages.String != "" {
		if err := json.Unmarshal([]byte(pages.String), &c.Pages); err != nil {
			return nil, fmt.Errorf("decoding pages of chapter %s: %w", c.ID, err)
		}
	}
	c.Locked = locked != 0
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// GetChapter returns the chapter with the given id.
func (b *Backend) GetChapter(ctx context.Context, id string) (*types.Chapter, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	c, err := scanChapter(b.q.QueryRowContext(ctx, "SELECT "+chapterColumns+" FROM chapters WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrChapterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting chapter: %w", err)
	}
	return c, nil
}

// ListChapters returns a series' chapters in numeric order; "10.5" sorts
// between "10" and "11".
func (b *Backend) ListChapters(ctx context.Context, seriesID string) ([]*types.Chapter, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := b.q.QueryContext(ctx,
		"SELECT "+chapterColumns+" FROM chapters WHERE series_id = ? ORDER BY CAST(chapter_number AS REAL), chapter_number",
		seriesID)
	if err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*types.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// UpdateChapterPages replaces a chapter's pages and recomputes TotalPages.
func (b *Backend) UpdateChapterPages(ctx context.Context, id string, pages []string) (*types.Chapter, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	encoded, err := encodePages(pages)
	if err != nil {
		return nil, err
	}
	res, err := b.q.ExecContext(ctx,
		"UPDATE chapters SET pages = ?, total_pages = ?, updated_at = ? WHERE id = ?",
		encoded, len(pages), b.timestamp(), id)
	if err != nil {
		return nil, fmt.Errorf("updating chapter pages: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating chapter pages: %w", err)
	} else if n == 0 {
		return nil, types.ErrChapterNotFound
	}
	return b.GetChapter(ctx, id)
}

// UnlockChapter records that userID may read chapterID. A locked chapter
// with a positive cost is paid for through the ledger in the same
// transaction. Returns the user's balance afterwards.
func (b *Backend) UnlockChapter(ctx context.Context, userID, chapterID string) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	if userID == "" || chapterID == "" {
		return 0, types.ErrInvalidID
	}

	var balance, paid int64
	err := b.withTx(ctx, func(q queryer) error {
		var (
			cost   int64
			locked int
		)
		err := q.QueryRowContext(ctx, "SELECT unlock_cost, is_locked FROM chapters WHERE id = ?", chapterID).Scan(&cost, &locked)
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrChapterNotFound
		}
		if err != nil {
			return fmt.Errorf("reading chapter: %w", err)
		}

		var unlocked int
		if err := q.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM chapter_unlocks WHERE user_id = ? AND chapter_id = ?)",
			userID, chapterID).Scan(&unlocked); err != nil {
			return fmt.Errorf("checking unlock: %w", err)
		}
		if unlocked != 0 {
			return types.ErrAlreadyUnlocked
		}

		paid = 0
		if locked != 0 && cost > 0 {
			balance, err = b.applyDelta(ctx, q, types.CurrencyDelta{
				UserID:          userID,
				Amount:          -cost,
				Type:            types.TxUnlockChapter,
				Description:     "chapter unlock",
				RelatedEntityID: chapterID,
			})
			if err != nil {
				return err
			}
			paid = cost
		} else {
			err = q.QueryRowContext(ctx, "SELECT currency_balance FROM users WHERE id = ?", userID).Scan(&balance)
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("reading balance: %w", err)
			}
		}

		_, err = q.ExecContext(ctx,
			"INSERT INTO chapter_unlocks (user_id, chapter_id, cost, created_at) VALUES (?, ?, ?, ?)",
			userID, chapterID, paid, b.timestamp())
		if isUniqueViolation(err) {
			return types.ErrAlreadyUnlocked
		}
		if err != nil {
			return fmt.Errorf("recording unlock: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if paid > 0 {
		ledgerMutations.WithLabelValues(types.TxUnlockChapter.String(), "applied").Inc()
	}
	b.logger.Debug().Str("user_id", userID).Str("chapter_id", chapterID).Int64("cost", paid).Msg("chapter unlocked")
	return balance, nil
}
