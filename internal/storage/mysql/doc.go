// Package mysql provides the MySQL-backed repositories for posts,
// long-term memories and accounts, plus a file-backed drop-in used
// for local development.
package mysql
