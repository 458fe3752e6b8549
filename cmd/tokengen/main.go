// Command tokengen mints a bearer token for the protected certificate routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "certledger/internal/jwt_token"
	"certledger/internal/platform/config"
)

func main() {
	subject := flag.String("subject", "", "token subject, usually the issuing application")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	token, err := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience).GenerateToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
