// Package config holds the environment-driven configuration shared by
// the fuzzbin commands. Structs carry cleanenv tags; durations accept
// ISO 8601 or Go duration syntax.
package config
