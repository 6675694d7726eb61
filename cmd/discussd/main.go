package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lherron/discuss/internal/config"
	"github.com/lherron/discuss/internal/daemon"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.Addr, "Listen address")
	unixPath := flag.String("unix", os.Getenv("DISCUSS_UNIX"), "Listen on unix socket path")
	token := flag.String("token", cfg.Token, "Shared token for local auth")
	dbPath := flag.String("db", cfg.DBPath, "Database path")
	actor := flag.String("actor", cfg.GetActorID(), "Actor used when a request names none")
	origins := flag.String("allowed-origins", strings.Join(cfg.AllowedOrigins, ","), "Comma-separated CORS origins")
	flag.Parse()

	var allowed []string
	for _, o := range strings.Split(*origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	opts := daemon.Options{
		Addr:           *addr,
		Unix:           *unixPath,
		Token:          *token,
		DBPath:         *dbPath,
		DefaultActor:   *actor,
		AllowedOrigins: allowed,
		Logger:         log.New(os.Stderr, "discussd ", log.LstdFlags),
	}

	if err := daemon.Serve(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
