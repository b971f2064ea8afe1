// Package providers groups the built-in connectors: dynamics365 (CRM),
// mailerlite (email marketing) and snaptcha (hidden field CAPTCHA).
//
// Connectors are constructed through the factories in the root package so
// they pick up shared logging, HTTP defaults and rate limiting.
package providers
