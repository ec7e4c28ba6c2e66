// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (applied by the caller after Load)
//  2. Environment variables (UNITRACK_ prefix)
//  3. YAML configuration file
//  4. Defaults registered with WithDefaults
//
// Environment keys use a double underscore as the section separator so that
// single underscores can appear inside key names:
//
//	UNITRACK_SERVER                -> server
//	UNITRACK_CLIENT__REFRESH_PATH  -> client.refresh_path
//	UNITRACK_SESSION__REDIS__ADDR  -> session.redis.addr
package confloader
