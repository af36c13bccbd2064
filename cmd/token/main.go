// Command token prints a bearer token for calling the staff API.
package main

import (
	"flag"
	"fmt"
	"os"

	"timeclock/internal/auth"
	"timeclock/internal/config"
)

func main() {
	subject := flag.String("sub", "staff", "token subject")
	role := flag.String("role", auth.RoleStaff, "token role")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	pair, err := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL).Issue(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(pair.AccessToken)
}
