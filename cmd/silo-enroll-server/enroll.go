package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
)

type enrollOptions struct {
	User        string
	Client      bool
	Name        string
	LocationID  int64
	PublicKey   string
	Addresses   []string
	Description string
	OutDir      string
	QR          bool
}

// runEnroll drives one enrollment from the command line, without the console.
func runEnroll(args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	user := fs.String("user", "", "Username to enroll a device for")
	client := fs.Bool("client", false, "Issue a client activation token instead of registering a device")
	name := fs.String("name", "", "Device name (manual setup)")
	location := fs.Int64("location", 0, "Location ID (manual setup)")
	pubkey := fs.String("pubkey", "", "WireGuard public key; generated when empty")
	addresses := fs.String("addresses", "", "Comma separated addresses; recommended when empty")
	description := fs.String("description", "", "Device description")
	outDir := fs.String("out", "./wireguard", "Directory to write configs and QR codes")
	qr := fs.Bool("qr", false, "Also write QR code PNGs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *user == "" {
		return fmt.Errorf("--user is required")
	}

	ctx := context.Background()
	store, closeJournal, err := openJournal(ctx)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer closeJournal()

	ctrl := enrollment.NewCoreController(coreapi.NewClient(config.Core), store, enrollment.Options{
		IssueTimeout:  config.Core.IssueTimeout,
		SubmitTimeout: config.Core.SubmitTimeout,
	})
	defer ctrl.Close()

	opts := enrollOptions{
		User:        *user,
		Client:      *client,
		Name:        *name,
		LocationID:  *location,
		PublicKey:   *pubkey,
		Addresses:   ParseCommaSeparated(*addresses),
		Description: *description,
		OutDir:      *outDir,
		QR:          *qr,
	}
	renderer := delivery.NewRenderer(config.Delivery.Scheme)

	if opts.Client {
		return enrollClient(ctx, ctrl, renderer, opts, os.Stdout)
	}
	return enrollManual(ctx, ctrl, opts, os.Stdout)
}

func enrollClient(ctx context.Context, ctrl *enrollment.Controller, renderer *delivery.Renderer, opts enrollOptions, out io.Writer) error {
	if _, err := ctrl.Open(ctx, opts.User); err != nil {
		return err
	}
	if _, err := ctrl.StartClientActivation(ctx); err != nil {
		return err
	}
	e, err := ctrl.Enrollment()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Enrollment token issued!")
	fmt.Fprint(out, renderer.Text(e))
	fmt.Fprintf(out, "Deep link: %s\n", renderer.DeepLink(e))

	if opts.QR {
		path := filepath.Join(opts.OutDir, delivery.FileName(opts.User)+"-enrollment.png")
		if err := writeQR(path, renderer.QRPayload(e)); err != nil {
			return err
		}
		fmt.Fprintf(out, "QR code:   %s\n", path)
	}
	return nil
}

func enrollManual(ctx context.Context, ctrl *enrollment.Controller, opts enrollOptions, out io.Writer) error {
	if opts.Name == "" {
		return fmt.Errorf("--name is required")
	}
	if opts.LocationID <= 0 {
		return fmt.Errorf("--location is required")
	}

	if _, err := ctrl.Open(ctx, opts.User); err != nil {
		return err
	}
	if _, err := ctrl.StartManualSetup(); err != nil {
		return err
	}

	addresses := opts.Addresses
	recs, err := ctrl.SelectLocation(ctx, opts.LocationID)
	if err != nil {
		return fmt.Errorf("failed to get address recommendations: %w", err)
	}
	if len(addresses) == 0 {
		if len(recs) == 0 {
			return fmt.Errorf("no free address in location %d, pass --addresses", opts.LocationID)
		}
		addresses = []string{recs[0].Address()}
	}

	in := enrollment.ManualInput{
		Name:        opts.Name,
		LocationID:  opts.LocationID,
		KeyMode:     enrollment.KeyModeGenerate,
		Addresses:   addresses,
		Description: opts.Description,
	}
	if opts.PublicKey != "" {
		in.KeyMode = enrollment.KeyModeManual
		in.PublicKey = opts.PublicKey
	}

	res, err := ctrl.SubmitManual(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Device registered!")
	fmt.Fprintf(out, "  Device ID:  %d\n", res.Device.ID)
	fmt.Fprintf(out, "  Public key: %s\n", res.Keys.PublicKey)
	if res.Closed {
		fmt.Fprintln(out, "No network configuration was returned for this device.")
		return nil
	}

	if err := os.MkdirAll(opts.OutDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", opts.OutDir, err)
	}
	for _, cfg := range res.Configs {
		text := delivery.ConfigText(cfg.Config, res.Keys.PrivateKey)
		base := delivery.FileName(opts.Name + "-" + cfg.NetworkName)

		path := filepath.Join(opts.OutDir, base+".conf")
		if err := os.WriteFile(path, []byte(text), 0600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(out, "  Config:     %s\n", path)

		if opts.QR {
			qrPath := filepath.Join(opts.OutDir, base+".png")
			if err := writeQR(qrPath, text); err != nil {
				return err
			}
			fmt.Fprintf(out, "  QR code:    %s\n", qrPath)
		}
	}
	if res.Keys.PrivateKey == "" {
		fmt.Fprintln(out, "Fill in the private key matching --pubkey before importing the config.")
	}
	return nil
}

func writeQR(path, content string) error {
	png, err := delivery.QRCode(content, delivery.DefaultQRSize)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, png, 0600); err != nil {
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	return nil
}
