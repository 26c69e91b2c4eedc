package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"govlink/checkin-service/internal/checkin"
	"govlink/checkin-service/internal/lookup"
	"govlink/checkin-service/internal/models"
	"govlink/checkin-service/internal/scan"

	"github.com/disintegration/imaging"
	"github.com/spf13/pflag"
)

type verifyOptions struct {
	qr               string
	imagePath        string
	framesDir        string
	terminalID       string
	department       string
	lookupURL        string
	lookupToken      string
	timeout          time.Duration
	timezone         string
	signingKey       string
	requireSignature bool
	now              string
	jsonOutput       bool
}

func runVerify(args []string, stdout, stderr io.Writer) error {
	var opts verifyOptions
	flags := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.qr, "qr", "", "raw QR text to verify")
	flags.StringVar(&opts.imagePath, "image", "", "image file containing the QR code")
	flags.StringVar(&opts.framesDir, "frames-dir", "", "directory of camera frames, read in name order")
	flags.StringVar(&opts.terminalID, "terminal", "checkinctl", "terminal id reported in the result")
	flags.StringVarP(&opts.department, "department", "d", "", "department served by this desk (required)")
	flags.StringVar(&opts.lookupURL, "lookup-url", os.Getenv("LOOKUP_URL"), "appointment lookup base URL")
	flags.StringVar(&opts.lookupToken, "lookup-token", os.Getenv("LOOKUP_TOKEN"), "bearer token for the lookup backend")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "lookup timeout")
	flags.StringVar(&opts.timezone, "timezone", envOr("OFFICE_TIMEZONE", "Asia/Colombo"), "office time zone")
	flags.StringVar(&opts.signingKey, "signing-key", os.Getenv("PASS_SIGNING_KEY"), "pass signing key")
	flags.BoolVar(&opts.requireSignature, "require-signature", false, "reject passes without a valid signature")
	flags.StringVar(&opts.now, "now", "", "evaluate as of this RFC3339 instant instead of the current time")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return errUsage
	}

	sources := 0
	for _, set := range []bool{opts.qr != "", opts.imagePath != "", opts.framesDir != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of --qr, --image or --frames-dir is required")
	}
	if strings.TrimSpace(opts.department) == "" {
		return fmt.Errorf("--department is required")
	}
	if opts.lookupURL == "" {
		return fmt.Errorf("--lookup-url or LOOKUP_URL is required")
	}

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", opts.timezone, err)
	}
	clock := time.Now
	if opts.now != "" {
		fixed, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		clock = func() time.Time { return fixed }
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	verifier := checkin.NewVerifier(
		lookup.NewHTTPClient(opts.lookupURL, lookup.HTTPOptions{Token: opts.lookupToken, Timeout: opts.timeout}),
		checkin.Options{
			Location:         loc,
			LookupTimeout:    opts.timeout,
			Now:              clock,
			Signer:           checkin.NewSigner([]byte(opts.signingKey)),
			RequireSignature: opts.requireSignature,
			Logger:           logger,
		},
	)
	terminal := models.Terminal{ID: opts.terminalID, Department: strings.TrimSpace(opts.department)}
	ctx := context.Background()
	report := func(ctx context.Context, raw string) {
		printResult(stdout, verifier.Verify(ctx, raw, terminal), opts.jsonOutput)
	}

	decoder := scan.NewDecoder(0)
	switch {
	case opts.qr != "":
		report(ctx, opts.qr)
		return nil
	case opts.imagePath != "":
		data, err := os.ReadFile(opts.imagePath)
		if err != nil {
			return err
		}
		raw, err := decoder.Decode(ctx, scan.ImageSource{Data: data})
		if err != nil {
			return err
		}
		report(ctx, raw)
		return nil
	default:
		frames, err := loadFrames(opts.framesDir)
		if err != nil {
			return err
		}
		return scan.Watch(ctx, decoder, terminal.ID, frames, checkin.NewRecentScans(5, 0), report)
	}
}

// loadFrames streams the images of dir in name order, the way a camera
// would deliver them.
func loadFrames(dir string) (<-chan image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	frames := make(chan image.Image)
	go func() {
		defer close(frames)
		for _, name := range names {
			img, err := imaging.Open(filepath.Join(dir, name), imaging.AutoOrientation(true))
			if err != nil {
				continue
			}
			frames <- img
		}
	}()
	return frames, nil
}

func printResult(w io.Writer, result models.ValidationResult, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}
	status := "REJECTED"
	if result.Admitted {
		status = "ADMITTED"
	}
	fmt.Fprintf(w, "%s (%s): %s\n", status, result.ReasonCode, result.Message)
	if result.Appointment != nil {
		a := result.Appointment
		fmt.Fprintf(w, "  %s  %s  %s %s  %s [%s]\n", a.BookingReference, a.CitizenName, a.Date, a.Time, a.Department, a.Status)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
