package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/config"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/middleware"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
)

// runCommand handles the operator subcommands:
//
//	server token -kiosk scanner-1 [-ttl 720h]
//	server hash-pin -pin 2468
func runCommand(name string, args []string, out io.Writer) error {
	switch name {
	case "token":
		fs := flag.NewFlagSet("token", flag.ContinueOnError)
		kiosk := fs.String("kiosk", "", "kiosk id to issue the token for")
		ttl := fs.Duration("ttl", 0, "token lifetime (default from config)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if *ttl <= 0 {
			*ttl = cfg.Auth.TokenTTL
		}
		return issueToken(out, cfg.Auth.JWTSecret, *kiosk, *ttl)
	case "hash-pin":
		fs := flag.NewFlagSet("hash-pin", flag.ContinueOnError)
		pin := fs.String("pin", "", "operator PIN to hash")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *pin == "" {
			return errors.New("hash-pin: -pin is required")
		}
		h, err := services.HashPIN(*pin)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, h)
		return err
	default:
		return fmt.Errorf("unknown command %q (want token or hash-pin)", name)
	}
}

func issueToken(out io.Writer, secret, kioskID string, ttl time.Duration) error {
	tok, err := middleware.NewTokenAuth(secret).SignToken(kioskID, ttl)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}
