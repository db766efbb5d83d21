// Command cardctl drives the card wizard against a running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Max0709202/real-estate-ai-card-sub002/pkg/cardclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "fill":
		err = runFill(args)
	case "card":
		err = runCard(args)
	case "cancel":
		err = runCancel(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  fill     Submit every wizard step from a JSON file")
	fmt.Fprintln(os.Stderr, "  card     Print the current card")
	fmt.Fprintln(os.Stderr, "  cancel   Cancel the subscription")
	os.Exit(2)
}

type sessionOpts struct {
	baseURL  string
	email    string
	password string
}

func sessionFlags(fs *flag.FlagSet) *sessionOpts {
	o := &sessionOpts{}
	fs.StringVar(&o.baseURL, "base-url", getenv("CARDCTL_BASE_URL", "http://localhost:8080"), "API base URL")
	fs.StringVar(&o.email, "email", getenv("CARDCTL_EMAIL", ""), "account email")
	fs.StringVar(&o.password, "password", getenv("CARDCTL_PASSWORD", ""), "account password")
	return o
}

func login(ctx context.Context, o *sessionOpts) (*cardclient.Client, error) {
	if strings.TrimSpace(o.email) == "" || o.password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	client, err := cardclient.New(o.baseURL)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, o.email, o.password); err != nil {
		return nil, err
	}
	return client, nil
}

func runFill(args []string) error {
	fs := flag.NewFlagSet("fill", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	session := sessionFlags(fs)
	formsPath := fs.String("forms", "", "JSON file with the step forms")
	statePath := fs.String("state", getenv("CARDCTL_STATE_PATH", "cardctl-progress.json"), "wizard progress file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *formsPath == "" {
		return fmt.Errorf("forms file is required")
	}

	ctx := context.Background()
	client, err := login(ctx, session)
	if err != nil {
		return err
	}

	doc, err := loadFormFile(*formsPath)
	if err != nil {
		return err
	}

	card, err := runWizard(ctx, client, doc, *statePath)
	if err != nil {
		return err
	}
	return printJSON(card)
}

func runCard(args []string) error {
	fs := flag.NewFlagSet("card", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	session := sessionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	client, err := login(ctx, session)
	if err != nil {
		return err
	}
	card, err := client.GetCard(ctx)
	if err != nil {
		return err
	}
	return printJSON(card)
}

func runCancel(args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	session := sessionFlags(fs)
	immediately := fs.Bool("now", false, "cancel immediately instead of at period end")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	client, err := login(ctx, session)
	if err != nil {
		return err
	}
	if err := client.Cancel(ctx, *immediately); err != nil {
		return err
	}
	fmt.Println("cancelled")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
