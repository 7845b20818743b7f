// Command emotion serves and runs the sentiment analyzer.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("emotion failed")
		os.Exit(1)
	}
}
