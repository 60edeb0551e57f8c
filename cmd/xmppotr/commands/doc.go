// Package commands defines the xmppotr CLI.
//
// Commands
//
//   - connect        Log in and run an interactive chat console
//   - fingerprint    Print the local OTR key fingerprint
//   - config init    Write a commented config.yaml
//
// # Implementation
//
// The root command resolves the config directory and log level before any
// subcommand runs. Commands that need an account load config.yaml from that
// directory; the OTR key and fingerprint files live next to it.
package commands
