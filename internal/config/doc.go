// Package config handles configuration loading, parsing, and validation
// from environment variables. It provides type-safe access to application
// settings needed by different components while keeping configuration
// details separate from business logic.
//
// The environment variable names bound here form the deployment contract
// shared with the configuration template (.env.example) and the platform
// manifest (render.yaml).
package config
