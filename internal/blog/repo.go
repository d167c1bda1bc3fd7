package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvelkov/inkpost/internal/telemetry/tracing"
	"github.com/mvelkov/inkpost/pkg"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const postColumns = `
	id, title, slug, excerpt, content, cover_image, category, tags,
	published, featured, read_time, author_id, created_at, updated_at`

// Add stores a new post. The slug is derived from the title when not
// given, tags are normalized and the read time is always recomputed
// from the content. Uniqueness of the slug is checked inside the
// transaction, with the UNIQUE constraint as the backstop for races.
func (r *Repo) Add(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.add")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if post.Title == "" || post.Content == "" {
		return ErrTitleOrContentEmpty
	}
	if post.AuthorID == "" {
		return ErrAuthorEmpty
	}
	if post.Slug == "" {
		post.Slug = Slugify(post.Title)
	}
	if post.Slug == "" {
		return ErrSlugEmpty
	}

	post.Tags = NormalizeTags(post.Tags)
	post.ReadTime = EstimateReadTime(post.Content)
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.UpdatedAt = post.CreatedAt

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit(ctx)
	}()

	var slugTaken bool
	if err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM post WHERE slug = $1)`, post.Slug,
	).Scan(&slugTaken); err != nil {
		return fmt.Errorf("check slug: %w", err)
	}
	if slugTaken {
		return ErrSlugExists
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO post
			(title, slug, excerpt, content, cover_image, category, tags,
			 published, featured, read_time, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		post.Title, post.Slug, post.Excerpt, post.Content, post.CoverImage,
		post.Category, JoinTags(post.Tags), post.Published, post.Featured,
		post.ReadTime, post.AuthorID, post.CreatedAt, post.UpdatedAt,
	).Scan(&post.ID)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrSlugExists
		}
		if pkg.IsForeignKeyViolationError(err) {
			return ErrAuthorNotFound
		}
		return err
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, id int64) (post *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.get")
	defer func() {
		if err != nil && !errors.Is(err, ErrPostNotFound) {
			span.RecordError(err)
		}
		span.End()
	}()

	row := r.db.QueryRow(ctx,
		`SELECT `+postColumns+` FROM post WHERE id = $1`, id,
	)
	return scanPost(row)
}

func (r *Repo) GetBySlug(ctx context.Context, slug string) (post *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.getBySlug")
	defer func() {
		if err != nil && !errors.Is(err, ErrPostNotFound) {
			span.RecordError(err)
		}
		span.End()
	}()

	row := r.db.QueryRow(ctx,
		`SELECT `+postColumns+` FROM post WHERE slug = $1`, slug,
	)
	return scanPost(row)
}

// All returns every post, drafts included, newest first.
func (r *Repo) All(ctx context.Context) (posts []*Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.all")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	rows, err := r.db.Query(ctx,
		`SELECT `+postColumns+` FROM post ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	return rows2posts(rows)
}

// Featured returns posts that are both published and featured, newest
// first. Featured drafts stay out of the result.
func (r *Repo) Featured(ctx context.Context) (posts []*Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.featured")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	rows, err := r.db.Query(ctx,
		`SELECT `+postColumns+` FROM post
		WHERE published AND featured
		ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	return rows2posts(rows)
}

// Update applies a partial update to the post with the given id and
// returns the updated record. The row is locked for the duration of
// the transaction so the slug re-check and the write are atomic. The
// read time is recomputed whenever the content changes, and updated_at
// is refreshed on every successful update.
func (r *Repo) Update(ctx context.Context, id int64, update UpdatePost) (post *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.update")
	defer func() {
		if err != nil && !errors.Is(err, ErrPostNotFound) {
			span.RecordError(err)
		}
		span.End()
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit(ctx)
	}()

	row := tx.QueryRow(ctx,
		`SELECT `+postColumns+` FROM post WHERE id = $1 FOR UPDATE`, id,
	)
	post, err = scanPost(row)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		post.Title = *update.Title
	}
	if update.Slug != nil {
		post.Slug = *update.Slug
	}
	if update.Excerpt != nil {
		post.Excerpt = *update.Excerpt
	}
	contentChanged := update.Content != nil && *update.Content != post.Content
	if update.Content != nil {
		post.Content = *update.Content
	}
	if update.CoverImage != nil {
		post.CoverImage = *update.CoverImage
	}
	if update.Category != nil {
		post.Category = *update.Category
	}
	if update.Tags != nil {
		post.Tags = NormalizeTags(*update.Tags)
	}
	if update.Published != nil {
		post.Published = *update.Published
	}
	if update.Featured != nil {
		post.Featured = *update.Featured
	}

	if post.Title == "" || post.Content == "" {
		return nil, ErrTitleOrContentEmpty
	}
	if post.Slug == "" {
		return nil, ErrSlugEmpty
	}

	if update.Slug != nil {
		var slugTaken bool
		if err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM post WHERE slug = $1 AND id <> $2)`,
			post.Slug, id,
		).Scan(&slugTaken); err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if slugTaken {
			return nil, ErrSlugExists
		}
	}

	if contentChanged {
		post.ReadTime = EstimateReadTime(post.Content)
	}
	post.UpdatedAt = time.Now()

	_, err = tx.Exec(ctx,
		`UPDATE post SET
			title = $1, slug = $2, excerpt = $3, content = $4,
			cover_image = $5, category = $6, tags = $7, published = $8,
			featured = $9, read_time = $10, updated_at = $11
		WHERE id = $12`,
		post.Title, post.Slug, post.Excerpt, post.Content, post.CoverImage,
		post.Category, JoinTags(post.Tags), post.Published, post.Featured,
		post.ReadTime, post.UpdatedAt, id,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrSlugExists
		}
		return nil, err
	}

	return post, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.delete")
	defer func() {
		if err != nil && !errors.Is(err, ErrPostNotFound) {
			span.RecordError(err)
		}
		span.End()
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM post WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *Repo) PostsCount(ctx context.Context) (count int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.postsCount")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM post`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanPost(row pgx.Row) (*Post, error) {
	var post Post
	var tags string
	err := row.Scan(
		&post.ID, &post.Title, &post.Slug, &post.Excerpt, &post.Content,
		&post.CoverImage, &post.Category, &tags, &post.Published,
		&post.Featured, &post.ReadTime, &post.AuthorID,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	post.Tags = SplitTags(tags)
	return &post, nil
}

func rows2posts(rows pgx.Rows) ([]*Post, error) {
	defer rows.Close()
	var posts []*Post
	for rows.Next() {
		var post Post
		var tags string
		if err := rows.Scan(
			&post.ID, &post.Title, &post.Slug, &post.Excerpt, &post.Content,
			&post.CoverImage, &post.Category, &tags, &post.Published,
			&post.Featured, &post.ReadTime, &post.AuthorID,
			&post.CreatedAt, &post.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		post.Tags = SplitTags(tags)
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}
