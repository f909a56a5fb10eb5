package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/service"
)

func main() {
	var (
		role string
		ttl  time.Duration
	)
	flag.StringVar(&role, "role", string(service.RoleAnon), "Key role: anon or service_role")
	flag.DurationVar(&ttl, "ttl", 0, "Key lifetime (0 = no expiry)")
	flag.Parse()

	cfg := config.Load()

	key, err := service.NewAPIKeyService(cfg).Issue(service.APIKeyRole(role), ttl)
	if err != nil {
		log.Fatalf("Issue failed: %v", err)
	}

	// Key only on stdout so it can be piped into a config file.
	fmt.Println(key)
}
