// Package forms answers the builder's form integration requests
// (formFields, formAction) from a remote form service.
//
// Calls go through a circuit breaker so a dead service turns into immediate
// rejections rather than a stalled builder.
package forms
