package blog

import (
	"errors"
	"time"
)

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrSlugExists          = errors.New("post slug already exists")
	ErrSlugEmpty           = errors.New("post slug empty")
	ErrTitleOrContentEmpty = errors.New("post title or content empty")
	ErrAuthorEmpty         = errors.New("post author empty")
	ErrAuthorNotFound      = errors.New("post author not found")
)

type Post struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Excerpt    string    `json:"excerpt"`
	Content    string    `json:"content"`
	CoverImage string    `json:"coverImage"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags"`
	Published  bool      `json:"published"`
	Featured   bool      `json:"featured"`
	ReadTime   int       `json:"readTime"`
	AuthorID   string    `json:"authorId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// UpdatePost carries a partial update for a post. Nil fields are left
// untouched, set fields overwrite the stored value.
type UpdatePost struct {
	Title      *string
	Slug       *string
	Excerpt    *string
	Content    *string
	CoverImage *string
	Category   *string
	Tags       *[]string
	Published  *bool
	Featured   *bool
}
