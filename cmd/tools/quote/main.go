package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/app"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/quote"
)

func main() {
	in := flag.String("in", "", "path to a quote input JSON file (default stdin)")
	catalog := flag.String("coupons", "", "coupon catalog JSON file (overrides COUPON_CATALOG_PATH)")
	applicable := flag.Bool("applicable", false, "list applicable catalog coupons instead of quoting")
	pretty := flag.Bool("pretty", false, "indent output")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := run(context.Background(), *in, *catalog, *applicable, *pretty, os.Stdin, os.Stdout, logger); err != nil {
		logger.Fatal().Err(err).Msg("quote")
	}
}

func run(ctx context.Context, inPath, catalogPath string, applicable, pretty bool, stdin io.Reader, stdout io.Writer, logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if catalogPath != "" {
		cfg.CouponCatalogPath = catalogPath
	}
	coupons, err := coupon.LoadCatalog(cfg.CouponCatalogPath)
	if err != nil {
		return err
	}
	svc := app.NewQuoteService(cfg, coupons, nil, logger)

	src := stdin
	if inPath != "" {
		f, err := os.Open(inPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src = f
	}
	var input quote.Input
	if err := json.NewDecoder(src).Decode(&input); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	var out any
	if applicable {
		out, err = svc.ApplicableCoupons(ctx, input)
	} else {
		out, err = svc.Quote(ctx, input)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
