package blog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RepoMock is an in-memory posts repository used in handler tests. It
// mirrors the derivation and uniqueness behavior of the real repo.
type RepoMock struct {
	mutex  sync.Mutex
	Posts  map[int64]*Post
	nextID int64
}

func NewRepoMock() *RepoMock {
	return &RepoMock{
		Posts:  map[int64]*Post{},
		nextID: 1,
	}
}

func (r *RepoMock) Add(_ context.Context, post *Post) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

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
	for _, existing := range r.Posts {
		if existing.Slug == post.Slug {
			return ErrSlugExists
		}
	}

	post.Tags = NormalizeTags(post.Tags)
	post.ReadTime = EstimateReadTime(post.Content)
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.UpdatedAt = post.CreatedAt

	post.ID = r.nextID
	r.nextID++
	r.Posts[post.ID] = clonePost(post)
	return nil
}

func (r *RepoMock) Get(_ context.Context, id int64) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, ok := r.Posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return clonePost(post), nil
}

func (r *RepoMock) GetBySlug(_ context.Context, slug string) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, post := range r.Posts {
		if post.Slug == slug {
			return clonePost(post), nil
		}
	}
	return nil, ErrPostNotFound
}

func (r *RepoMock) All(_ context.Context) ([]*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.sortedPosts(func(*Post) bool { return true }), nil
}

func (r *RepoMock) Featured(_ context.Context) ([]*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.sortedPosts(func(p *Post) bool { return p.Published && p.Featured }), nil
}

func (r *RepoMock) Update(_ context.Context, id int64, update UpdatePost) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, ok := r.Posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	post := *stored

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
		for otherID, other := range r.Posts {
			if otherID != id && other.Slug == post.Slug {
				return nil, ErrSlugExists
			}
		}
	}

	if contentChanged {
		post.ReadTime = EstimateReadTime(post.Content)
	}
	post.UpdatedAt = time.Now()

	r.Posts[id] = clonePost(&post)
	return clonePost(&post), nil
}

func (r *RepoMock) Delete(_ context.Context, id int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.Posts, id)
	return nil
}

func (r *RepoMock) PostsCount(_ context.Context) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.Posts), nil
}

// clonePost deep-copies a post so stored records never share the tags
// backing array with values handed to or from callers.
func clonePost(post *Post) *Post {
	copied := *post
	copied.Tags = append([]string(nil), post.Tags...)
	return &copied
}

func (r *RepoMock) sortedPosts(keep func(*Post) bool) []*Post {
	var posts []*Post
	for _, post := range r.Posts {
		if keep(post) {
			posts = append(posts, clonePost(post))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}
