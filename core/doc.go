// Package core contains the form integration contracts and the Service that
// orchestrates settings discovery, submission delivery and captcha checks.
// Provider and transport adapters depend on this package; core must not
// depend on them.
package core
