package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	log "github.com/sirupsen/logrus"

	"github.com/mvelkov/inkpost/internal/blog"
	"github.com/mvelkov/inkpost/internal/config"
	"github.com/mvelkov/inkpost/internal/db"
	"github.com/mvelkov/inkpost/internal/logging"
)

// seeder fills a fresh database with an author and a batch of fake
// posts, handy for local development of the frontend.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	postsCount := flag.Int("posts", 20, "number of posts to seed")
	authorEmail := flag.String("author-email", "author@inkpost.blog", "seeded author email")
	authorName := flag.String("author-name", "Ink Author", "seeded author name")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    "trace",
		Environment: cfg.Environment,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	poolParams := db.NewDBPoolParams{
		DBHost: cfg.PostgresHost,
		DBPort: cfg.PostgresPort,
		DBName: cfg.PostgresDBName,
	}

	if err := db.Migrate(ctx, poolParams); err != nil {
		log.Fatalf("run db migrations: %s", err)
	}

	dbPool, err := db.NewDBPool(ctx, poolParams)
	if err != nil {
		log.Fatalf("new db pool: %s", err)
	}
	defer dbPool.Close()

	var authorID string
	err = dbPool.QueryRow(ctx,
		`INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		gofakeit.UUID(), *authorEmail, *authorName,
	).Scan(&authorID)
	if err != nil {
		log.Fatalf("upsert author: %s", err)
	}
	log.Infof("author ready: %s <%s>", authorID, *authorEmail)

	repo := blog.NewRepo(dbPool)
	categories := []string{"engineering", "travel", "books", "misc"}

	seeded := 0
	for i := 0; i < *postsCount; i++ {
		post := &blog.Post{
			Title:      fmt.Sprintf("%s %s", gofakeit.HipsterWord(), gofakeit.HackerPhrase()),
			Excerpt:    gofakeit.Sentence(12),
			Content:    gofakeit.Paragraph(6, 8, 40, " "),
			CoverImage: fmt.Sprintf("https://i.ibb.co/seed/%s.png", gofakeit.LetterN(8)),
			Category:   categories[i%len(categories)],
			Tags:       []string{gofakeit.HackerNoun(), gofakeit.HackerNoun()},
			Published:  i%3 != 0,
			Featured:   i%5 == 0,
			AuthorID:   authorID,
			CreatedAt:  time.Now().Add(-time.Duration(i*24) * time.Hour),
		}
		if err := repo.Add(ctx, post); err != nil {
			if errors.Is(err, blog.ErrSlugExists) {
				log.Warnf("skipping post with taken slug: %s", post.Slug)
				continue
			}
			log.Fatalf("add post: %s", err)
		}
		seeded++
		log.Tracef("seeded post [%d] %s", post.ID, post.Slug)
	}

	log.Infof("done, %d posts seeded", seeded)
}
