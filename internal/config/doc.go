// Package config loads the assistant configuration from a JSON file, an
// optional .env file and environment variables, and resolves ssm: references
// through AWS Systems Manager Parameter Store.
package config
