// Package config loads, normalizes, and validates dynamic-ingest settings.
//
// Settings come from a TOML file layered over repository defaults, then
// BRIGHTCOVE_* and INGEST_* environment variables. The Config type turns
// them into API client, uploader, and orchestrator options so the CLI and
// the Lambda functions wire the same components the same way.
package config
