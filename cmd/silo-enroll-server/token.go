package main

import (
	"flag"
	"fmt"

	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/google/uuid"
)

// runToken mints an operator token for the console API.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	operatorID := fs.String("id", "", "Operator ID (default: random)")
	username := fs.String("username", "", "Operator username")
	role := fs.String("role", auth.RoleAdmin, "Operator role")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default: auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		return fmt.Errorf("--username is required")
	}
	if *operatorID == "" {
		*operatorID = uuid.NewString()
	}

	cfg := config.Auth
	if *ttl > 0 {
		cfg.TokenTTL = *ttl
	}
	token, err := auth.GenerateToken(cfg, *operatorID, *username, *role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
