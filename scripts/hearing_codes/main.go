// Command hearing_codes prints the attendance codes for a hearing, checks a
// presented code and mints short-lived bearer tokens for local testing.
//
//	go run ./scripts/hearing_codes derive -case CR/001/2025 -date 2025-03-14
//	go run ./scripts/hearing_codes verify -case CR/001/2025 -date 2025-03-14 -code CR001-7KQ2
//	go run ./scripts/hearing_codes token -user o-1 -role OFFICER -name "Inspector Rao"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	"github.com/chayanC7mondal/project-sync-sub000/internal/service"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/config"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/hearingcode"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	switch os.Args[1] {
	case "derive":
		err = runDerive(cfg, os.Args[2:])
	case "verify":
		err = runVerify(cfg, os.Args[2:])
	case "token":
		err = runToken(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hearing_codes <derive|verify|token> [flags]")
}

func runDerive(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	caseID := fs.String("case", "", "case identifier")
	date := fs.String("date", "", "hearing date (YYYY-MM-DD)")
	_ = fs.Parse(args)

	codec, day, err := codecFor(cfg, *caseID, *date)
	if err != nil {
		return err
	}
	return printJSON(codec.Derive(*caseID, day))
}

func runVerify(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	caseID := fs.String("case", "", "case identifier")
	date := fs.String("date", "", "hearing date (YYYY-MM-DD)")
	code := fs.String("code", "", "presented QR or manual code")
	_ = fs.Parse(args)

	codec, day, err := codecFor(cfg, *caseID, *date)
	if err != nil {
		return err
	}
	if !codec.Verify(*code, *caseID, day) {
		fmt.Println("invalid")
		os.Exit(1)
	}
	fmt.Println("valid")
	return nil
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "subject user id")
	role := fs.String("role", string(models.RoleOfficer), "ADMIN, LIAISON, SUPERVISOR, OFFICER or WITNESS")
	name := fs.String("name", "", "display name")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if strings.TrimSpace(*userID) == "" {
		return fmt.Errorf("-user is required")
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: *ttl,
	})
	token, expires, err := tokens.Issue(*userID, models.UserRole(strings.ToUpper(*role)), *name)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	return printJSON(map[string]string{
		"token":      token,
		"expires_at": expires.Format(time.RFC3339),
	})
}

func codecFor(cfg *config.Config, caseID, date string) (*hearingcode.Codec, time.Time, error) {
	if strings.TrimSpace(caseID) == "" || date == "" {
		return nil, time.Time{}, fmt.Errorf("-case and -date are required")
	}
	day, err := time.ParseInLocation(hearingcode.DateLayout, date, cfg.Attendance.Location())
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse date: %w", err)
	}
	codec, err := hearingcode.New(cfg.Codes.Secret)
	if err != nil {
		return nil, time.Time{}, err
	}
	return codec, day, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
