// Command devtoken signs an access token for local testing against a
// server started with the same JWT_SECRET.
//
//	devtoken -user 1 -role admin -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/parking-ledger/internal/logger"
	"github.com/iliyamo/parking-ledger/internal/utils"
)

func main() {
	_ = godotenv.Load()
	user := flag.Uint64("user", 0, "user id placed in the sub claim")
	role := flag.String("role", "user", "role claim (user or admin)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 secret (defaults to $JWT_SECRET)")
	flag.Parse()

	log := logger.New()
	if *user == 0 || *secret == "" {
		flag.Usage()
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(*secret, *user, *role, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(tok.Token)
	log.Info().Uint64("user_id", *user).Str("role", *role).Time("exp", tok.Exp).Msg("token issued")
}
