package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/mvelkov/inkpost/internal/telemetry/metrics"
	"github.com/mvelkov/inkpost/pkg"
)

type postsRepo interface {
	Add(ctx context.Context, post *Post) error
	Get(ctx context.Context, id int64) (*Post, error)
	GetBySlug(ctx context.Context, slug string) (*Post, error)
	All(ctx context.Context) ([]*Post, error)
	Featured(ctx context.Context) ([]*Post, error)
	Update(ctx context.Context, id int64, update UpdatePost) (*Post, error)
	Delete(ctx context.Context, id int64) error
	PostsCount(ctx context.Context) (int, error)
}

type Handler struct {
	repo    postsRepo
	metrics *metrics.Manager
}

func NewHandler(repo postsRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metricsManager,
	}
}

// SetupRoutes mounts the posts routes on the given router. The fixed
// paths go first so mux never swallows them as a {slug} value.
func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/posts", handler.handleNewPost).Methods("POST", "OPTIONS").Name("new-post")
	router.HandleFunc("/posts", handler.handleAll).Methods("GET").Name("posts")
	router.HandleFunc("/posts/featured", handler.handleFeatured).Methods("GET").Name("featured-posts")
	router.HandleFunc("/posts/by-id/{id}", handler.handleGetByID).Methods("GET").Name("post-by-id")
	router.HandleFunc("/posts/{slug}", handler.handleGetBySlug).Methods("GET").Name("post-by-slug")
	router.HandleFunc("/posts/{id}", handler.handleUpdatePost).Methods("PATCH", "OPTIONS").Name("update-post")
	router.HandleFunc("/posts/{id}", handler.handleDeletePost).Methods("DELETE", "OPTIONS").Name("delete-post")
}

type newPostRequest struct {
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Excerpt    string   `json:"excerpt"`
	Content    string   `json:"content"`
	CoverImage string   `json:"coverImage"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Published  bool     `json:"published"`
	Featured   bool     `json:"featured"`
	AuthorID   string   `json:"authorId"`
}

type updatePostRequest struct {
	Title      *string   `json:"title"`
	Slug       *string   `json:"slug"`
	Excerpt    *string   `json:"excerpt"`
	Content    *string   `json:"content"`
	CoverImage *string   `json:"coverImage"`
	Category   *string   `json:"category"`
	Tags       *[]string `json:"tags"`
	Published  *bool     `json:"published"`
	Featured   *bool     `json:"featured"`
}

type postsResponse struct {
	Posts []*Post `json:"posts"`
	Total int     `json:"total"`
}

func (handler *Handler) handleNewPost(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var req newPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("new post, decode request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}

	post := &Post{
		Title:      req.Title,
		Slug:       req.Slug,
		Excerpt:    req.Excerpt,
		Content:    req.Content,
		CoverImage: req.CoverImage,
		Category:   req.Category,
		Tags:       req.Tags,
		Published:  req.Published,
		Featured:   req.Featured,
		AuthorID:   req.AuthorID,
	}

	if err := handler.repo.Add(r.Context(), post); err != nil {
		switch {
		case errors.Is(err, ErrTitleOrContentEmpty),
			errors.Is(err, ErrAuthorEmpty),
			errors.Is(err, ErrAuthorNotFound),
			errors.Is(err, ErrSlugEmpty):
			http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		case errors.Is(err, ErrSlugExists):
			http.Error(w, "error, slug already exists", http.StatusConflict)
		default:
			log.Errorf("add new post: %s", err)
			http.Error(w, "error, failed to add post", http.StatusInternalServerError)
		}
		return
	}

	handler.metrics.CounterPostsCreated.Inc()
	log.Tracef("new post added: [%d] %s", post.ID, post.Slug)

	writePostJSON(w, post, http.StatusCreated)
}

// handleAll returns every post, drafts included. This backend serves a
// single-author admin UI, which does its own published filtering; public
// listings should use the featured endpoint or filter on published.
func (handler *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	posts, err := handler.repo.All(r.Context())
	if err != nil {
		log.Errorf("get all posts: %s", err)
		http.Error(w, "error, failed to get posts", http.StatusInternalServerError)
		return
	}
	writePostsJSON(w, posts)
}

func (handler *Handler) handleFeatured(w http.ResponseWriter, r *http.Request) {
	posts, err := handler.repo.Featured(r.Context())
	if err != nil {
		log.Errorf("get featured posts: %s", err)
		http.Error(w, "error, failed to get posts", http.StatusInternalServerError)
		return
	}
	writePostsJSON(w, posts)
}

func (handler *Handler) handleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		http.Error(w, "error, invalid post id", http.StatusBadRequest)
		return
	}

	post, err := handler.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			http.Error(w, "error, post not found", http.StatusNotFound)
			return
		}
		log.Errorf("get post %d: %s", id, err)
		http.Error(w, "error, failed to get post", http.StatusInternalServerError)
		return
	}

	writePostJSON(w, post, http.StatusOK)
}

func (handler *Handler) handleGetBySlug(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slug := vars["slug"]
	if slug == "" {
		http.Error(w, "error, slug empty", http.StatusBadRequest)
		return
	}

	post, err := handler.repo.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			http.Error(w, "error, post not found", http.StatusNotFound)
			return
		}
		log.Errorf("get post by slug %q: %s", slug, err)
		http.Error(w, "error, failed to get post", http.StatusInternalServerError)
		return
	}

	writePostJSON(w, post, http.StatusOK)
}

func (handler *Handler) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "PATCH, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	id, err := postID(r)
	if err != nil {
		http.Error(w, "error, invalid post id", http.StatusBadRequest)
		return
	}

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("update post, decode request: %s", err)
		http.Error(w, "error, invalid request", http.StatusBadRequest)
		return
	}

	post, err := handler.repo.Update(r.Context(), id, UpdatePost{
		Title:      req.Title,
		Slug:       req.Slug,
		Excerpt:    req.Excerpt,
		Content:    req.Content,
		CoverImage: req.CoverImage,
		Category:   req.Category,
		Tags:       req.Tags,
		Published:  req.Published,
		Featured:   req.Featured,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrPostNotFound):
			http.Error(w, "error, post not found", http.StatusNotFound)
		case errors.Is(err, ErrSlugExists):
			http.Error(w, "error, slug already exists", http.StatusConflict)
		case errors.Is(err, ErrTitleOrContentEmpty), errors.Is(err, ErrSlugEmpty):
			http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		default:
			log.Errorf("update post %d: %s", id, err)
			http.Error(w, "error, failed to update post", http.StatusInternalServerError)
		}
		return
	}

	log.Tracef("post updated: [%d] %s", post.ID, post.Slug)

	writePostJSON(w, post, http.StatusOK)
}

func (handler *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "DELETE, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	id, err := postID(r)
	if err != nil {
		http.Error(w, "error, invalid post id", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			http.Error(w, "error, post not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete post %d: %s", id, err)
		http.Error(w, "error, failed to delete post", http.StatusInternalServerError)
		return
	}

	log.Tracef("post deleted: %d", id)

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}

func postID(r *http.Request) (int64, error) {
	vars := mux.Vars(r)
	return strconv.ParseInt(vars["id"], 10, 64)
}

func writePostJSON(w http.ResponseWriter, post *Post, statusCode int) {
	if post.Tags == nil {
		post.Tags = []string{}
	}
	postJson, err := json.Marshal(post)
	if err != nil {
		log.Errorf("marshal post: %s", err)
		http.Error(w, "marshal post error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, postJson, statusCode)
}

func writePostsJSON(w http.ResponseWriter, posts []*Post) {
	if posts == nil {
		posts = []*Post{}
	}
	for _, post := range posts {
		if post.Tags == nil {
			post.Tags = []string{}
		}
	}
	respJson, err := json.Marshal(postsResponse{
		Posts: posts,
		Total: len(posts),
	})
	if err != nil {
		log.Errorf("marshal posts: %s", err)
		http.Error(w, "marshal posts error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
