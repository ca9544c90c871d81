package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/bondcrm/notionsync/syncservice"
)

func main() {
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud-dev, cloud)")
	flag.Parse()

	if err := syncservice.Run(*buildTarget); err != nil {
		log.Error().Err(err).Msg("sync service exited with error")
		os.Exit(1)
	}
}
