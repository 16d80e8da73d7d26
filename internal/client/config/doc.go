// Package config loads runtime configuration for the ielts-wiz client.
//
// Sources, lowest precedence first:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory, then IELTSWIZ_* environment
//     variables (IELTSWIZ_GATEWAY, IELTSWIZ_REST_URL, IELTSWIZ_API_KEY, ...).
//  3. A JSON or YAML file selected with -c or -config.
//  4. Command-line flags.
//
// Durations in files may be strings like "3s" or integer nanoseconds:
//
//	gateway: rest
//	rest_url: https://project.example.co
//	api_key: public-anon-key
//	request_timeout: 10s
//	online_check_interval: 3s
package config
