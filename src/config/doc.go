// Package config defines the configuration for a Lamarck node.
//
// Regardless of how Lamarck is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, Lamarck relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  validators.json // a JSON file containing the current validator set.
//  badger_db/ // (with --store) the persistent block database.
//  evolution/ // (with --store) one JSON file per applied consensus rule.
package config
