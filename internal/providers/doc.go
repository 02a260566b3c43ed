// Package providers builds the host's capability handlers from a provider
// file.
//
// Each capability the builder can ask for has a provider package:
//
//	media           addMedia     local asset library
//	forms           formFields   remote form service
//	                formAction
//	dynamiccontent  dcRichText   remote or fixed option
//	trigger         trigger      sandboxed JavaScript
//
// Example provider file:
//
//	media:
//	  root: ./assets
//	  patterns: ["images/**"]
//	  base_url: https://cdn.example.com/assets
//	forms:
//	  base_url: https://forms.example.com/api
//	  timeout: 5s
//	trigger:
//	  script_file: ./trigger.js
//
// TOML files use the same keys. Durations are strings such as "5s" in both
// formats.
// The storage package is not a capability; it persists saved documents.
package providers
