package main

import (
	"context"
	"os"

	"github.com/libloan/libloan/pkg/books"
	"github.com/libloan/libloan/pkg/config"
	"github.com/libloan/libloan/pkg/database"
	"github.com/libloan/libloan/pkg/errcodes"
	"github.com/libloan/libloan/pkg/genres"
	"github.com/libloan/libloan/pkg/migrations"
	"github.com/libloan/libloan/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/urfave/cli/v2"
)

// bookRecord is one entry of the catalog file. Prerequisites reference other
// entries by title.
type bookRecord struct {
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Genre         string   `json:"genre"`
	Prerequisites []string `json:"prerequisites"`
}

func main() {
	log := logger.New()

	app := &cli.App{
		Name:  "loadbooks",
		Usage: "import a JSON book catalog with genres and prerequisite edges",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Value: "./data/books.json",
				Usage: "path to the catalog JSON file",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, log, c.String("file"))
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

func run(ctx context.Context, log logger.Logger, path string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := migrations.BringUpToDate(ctx, db); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}

	records := []bookRecord{}
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.WithStack(err)
	}

	bookService := books.NewService(db)
	genreService := genres.NewService(db)

	// First pass creates genres and books so the second pass can resolve
	// prerequisite titles regardless of file order.
	for _, record := range records {
		genre, err := genreService.FindOrCreateGenre(ctx, record.Genre)
		if err != nil {
			return err
		}

		_, err = bookService.RetrieveBook(ctx, books.RetrieveBookOptions{Title: &record.Title})
		if err == nil {
			continue
		}
		if !errors.Is(err, errcodes.NotFound("Book")) {
			return err
		}

		book := &models.Book{
			Title:   record.Title,
			Author:  record.Author,
			GenreID: genre.ID,
		}
		if err := bookService.CreateBook(ctx, book); err != nil {
			return err
		}
	}

	for _, record := range records {
		if len(record.Prerequisites) == 0 {
			continue
		}

		book, err := bookService.RetrieveBook(ctx, books.RetrieveBookOptions{Title: &record.Title})
		if err != nil {
			return err
		}

		for _, title := range record.Prerequisites {
			prerequisite, err := bookService.RetrieveBook(ctx, books.RetrieveBookOptions{Title: &title})
			if err != nil {
				if errors.Is(err, errcodes.NotFound("Book")) {
					log.Warn("prerequisite not in catalog", logger.Data{"book": record.Title, "prerequisite": title})
					continue
				}
				return err
			}

			if err := bookService.AddPrerequisite(ctx, book.ID, prerequisite.ID); err != nil {
				return err
			}
		}
	}

	log.Info("catalog imported", logger.Data{"books": len(records)})
	return nil
}
