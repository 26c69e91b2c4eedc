package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"govlink/checkin-service/internal/checkin"
	"govlink/checkin-service/internal/pass"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

func runPass(args []string, stdout, stderr io.Writer) error {
	var payload checkin.QRPayload
	var signingKey, pngPath, pdfPath string
	var size int

	flags := pflag.NewFlagSet("pass", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&payload.Reference, "reference", "", "booking reference (required)")
	flags.StringVar(&payload.Department, "department", "", "department (required)")
	flags.StringVar(&payload.Date, "date", "", "appointment date, YYYY-MM-DD (required)")
	flags.StringVar(&payload.Time, "time", "", "appointment time, HH:MM (required)")
	flags.StringVar(&payload.CitizenName, "name", "", "citizen name")
	flags.StringVar(&payload.ServiceType, "service", "", "service type")
	flags.StringVar(&payload.AgentName, "agent", "", "agent name")
	flags.StringVar(&payload.OfficeName, "office", "", "office name")
	flags.StringVar(&signingKey, "signing-key", os.Getenv("PASS_SIGNING_KEY"), "sign the pass with this key")
	flags.StringVar(&pngPath, "png", "", "write the QR code PNG here")
	flags.StringVar(&pdfPath, "pdf", "", "write the printable pass PDF here")
	flags.IntVar(&size, "size", 256, "PNG size in pixels")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return errUsage
	}

	issued, raw, err := pass.Issue(payload, checkin.NewSigner([]byte(signingKey)), time.Now())
	if err != nil {
		return err
	}
	if pngPath != "" {
		data, err := pass.RenderPNG(raw, size)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pngPath, data, 0o644); err != nil {
			return err
		}
	}
	if pdfPath != "" {
		data, err := pass.RenderPDF(issued, raw)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintln(stdout, raw)
	return nil
}

func runHashKey(args []string, stdout, stderr io.Writer) error {
	var cost int
	flags := pflag.NewFlagSet("hash-key", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return errUsage
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("hash-key takes exactly one key argument")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(flags.Arg(0)), cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(hash))
	return nil
}
