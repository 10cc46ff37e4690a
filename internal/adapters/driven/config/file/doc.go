// Package file provides the TOML-backed ConfigStore. Values live in
// config.toml under the config directory and are watched for edits.
package file
