// Command opstoken prints a bearer token for the ops HTTP API, signed with
// OPS_TOKEN_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dtroode/sharekeeper/internal/config"
	"github.com/dtroode/sharekeeper/internal/model"
	"github.com/dtroode/sharekeeper/internal/token"
)

func main() {
	user := flag.String("user", "", "user id the token is issued to")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	if cfg.Ops.TokenSecret == "" {
		log.Fatal("OPS_TOKEN_SECRET is not set")
	}

	tok, err := token.NewJWT(cfg.Ops.TokenSecret).Generate(model.UserID(*user), *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Println(tok)
}
