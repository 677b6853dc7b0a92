// Command voucher-import loads vouchers from gzipped JSON-lines files, a
// legacy MongoDB collection and the legacy storefront endpoint into
// PostgreSQL. Codes defined by more than one source are rejected.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/techstore/internal/catalog"
	"github.com/xenking/techstore/internal/storage/mongo"
	"github.com/xenking/techstore/internal/storage/postgres"
)

type options struct {
	databaseURL     string
	dataGlob        string
	mongoURL        string
	mongoDatabase   string
	mongoCollection string
	legacyURL       string
	expected        uint
	dryRun          bool
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.dataGlob, "files", "", "glob of gzipped JSON-lines voucher files, e.g. data/vouchers*.jsonl.gz")
	flag.StringVar(&opts.mongoURL, "mongo-url", "", "legacy MongoDB URI to import from")
	flag.StringVar(&opts.mongoDatabase, "mongo-db", "techstore", "legacy MongoDB database")
	flag.StringVar(&opts.mongoCollection, "mongo-collection", mongo.DefaultCollection, "legacy MongoDB collection")
	flag.StringVar(&opts.legacyURL, "url", "", "legacy storefront voucher endpoint, e.g. https://shop.example.com/api/vouchers")
	flag.UintVar(&opts.expected, "expected", 1_000_000, "expected number of codes per source, sizes the bloom filters")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "validate and report without writing to the database")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("voucher import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("voucher import completed successfully")
}

func run(ctx context.Context, opts options) error {
	var sources []source

	if opts.dataGlob != "" {
		files, err := filepath.Glob(opts.dataGlob)
		if err != nil {
			return errors.Wrap(err, "match files")
		}
		if len(files) == 0 {
			return errors.Errorf("no files match %q", opts.dataGlob)
		}
		for _, f := range files {
			sources = append(sources, gzSource{path: f})
		}
	}

	if opts.mongoURL != "" {
		src, client, err := mongo.Connect(ctx, opts.mongoURL, opts.mongoDatabase, opts.mongoCollection)
		if err != nil {
			return errors.Wrap(err, "connect mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		sources = append(sources, &catalogSource{name: "mongo:" + opts.mongoCollection, catalog: src})
	}

	if opts.legacyURL != "" {
		client := &http.Client{Timeout: time.Minute}
		sources = append(sources, &catalogSource{
			name:    opts.legacyURL,
			catalog: catalog.NewHTTPSource(opts.legacyURL, client),
		})
	}

	if len(sources) == 0 {
		return errors.New("no sources: set --files, --mongo-url or --url")
	}

	result, err := collect(ctx, sources, opts.expected)
	if err != nil {
		return errors.Wrap(err, "collect vouchers")
	}

	slog.Info("sources scanned",
		slog.Int("sources", len(sources)),
		slog.Int("accepted", len(result.accepted)),
		slog.Int("duplicates", len(result.duplicates)),
		slog.Int("invalid", result.invalid),
	)
	for _, code := range result.duplicates {
		slog.Warn("code defined by several sources, skipped", slog.String("code", code))
	}

	if opts.dryRun || len(result.accepted) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := write(ctx, postgres.NewVoucherRepository(pool), result.accepted); err != nil {
		return errors.Wrap(err, "write vouchers to database")
	}
	return nil
}
