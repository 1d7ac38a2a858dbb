// Package config provides configuration loading for the agent daemon:
// a JSON file with defaults applied on load, plus environment variable
// overrides for secrets so keys never have to live in the file.
package config
