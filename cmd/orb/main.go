// orb runs a tap-to-talk voice assistant loop: capture a spoken question,
// send it to a remote assistant, and speak the reply.
//
// Usage:
//
//	orb run --config config.yaml
//	orb ask "what does my plan cover?"
package main

import (
	"os"

	"voice-orb/cmd/orb/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
