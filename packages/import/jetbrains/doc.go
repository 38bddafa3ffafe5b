// Package jetbrains imports JetBrains HTTP Client files (.http, .rest) into
// hitbox collections.
//
// Supported syntax:
//
//	@host = https://api.example.com
//
//	### Get user
//	# @name get_user
//	GET {{host}}/users/1 HTTP/1.1
//	Accept: application/json
//
//	### Create user
//	POST {{host}}/users
//	Content-Type: application/json
//
//	{"name": "{{name}}"}
//
// File variables become a profile. Requests become recipes: query strings are
// split into query parameters, Authorization headers into authentication, and
// url-encoded bodies into form fields. Comment lines (# or //) and response
// handler blocks are dropped.
package jetbrains
