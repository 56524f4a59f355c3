// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors provides user-friendly error handling for HTTP requests
// made to the conversion backend.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// StatusError is a non-success HTTP response from the backend.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// FormatNetworkError converts technical HTTP/network errors into user-friendly messages.
// It detects common error types (timeout, DNS, connection refused, TLS, server
// errors, rejected session) and displays troubleshooting information for host.
func FormatNetworkError(err error, host, context string) error {
	if err == nil {
		return nil
	}
	displayErrorMessage(err, host, context)
	return fmt.Errorf("network error: %w", err)
}

func displayErrorMessage(err error, host, context string) {
	switch code := StatusCode(err); {
	case code == 401 || code == 403:
		showAuthError(context)
		return
	case code >= 500:
		showServerError(context, code)
		return
	}
	switch {
	case isTimeoutError(err):
		showTimeoutError(context)
	case isDNSError(err):
		showDNSError(host, context)
	case isConnectionRefusedError(err):
		showConnectionRefusedError(host, context)
	case isTLSError(err):
		showTLSError(context)
	default:
		showGenericError(host, context, err.Error())
	}
}

func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isTLSError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate")
}

func showAuthError(context string) {
	pterm.Printf("🔒 The backend rejected the session while %s\n", context)
	pterm.Println()
	pterm.Println("Run 'convtrack login' to start a new session.")
	pterm.Println()
}

func showTimeoutError(context string) {
	pterm.Printf("⏱️  Connection timeout while %s\n", context)
	pterm.Println()
	pterm.Println("The conversion backend took too long to respond. It may be busy with a large job.")
	pterm.Println("Please try again in a few moments.")
	pterm.Println()
}

func showDNSError(host, context string) {
	pterm.Printf("🌐 Cannot resolve %s while %s\n", host, context)
	pterm.Println()
	pterm.Println("Check the backend URL in 'convtrack config show' and your DNS settings.")
	pterm.Println()
}

func showConnectionRefusedError(host, context string) {
	pterm.Printf("🚫 Connection refused by %s while %s\n", host, context)
	pterm.Println()
	pterm.Println("The conversion backend is not accepting connections. This could mean:")
	pterm.Println("  • The backend service is not running")
	pterm.Println("  • Wrong host or port in the backend URL")
	pterm.Println()
}

func showTLSError(context string) {
	pterm.Printf("🔒 Secure connection failed while %s\n", context)
	pterm.Println()
	pterm.Println("Cannot establish a TLS connection. Check the certificate of the backend")
	pterm.Println("and whether the URL should use http:// instead of https://.")
	pterm.Println()
}

func showServerError(context string, code int) {
	pterm.Printf("⚠️  Server error %d while %s\n", code, context)
	pterm.Println()
	pterm.Println("The conversion backend failed to handle the request. Running jobs are not affected")
	pterm.Println("by this; try again in a few moments.")
	pterm.Println()
}

func showGenericError(host, context, details string) {
	pterm.Printf("❌ Cannot reach %s while %s\n", host, context)
	pterm.Println()
	if details != "" {
		if len(details) > 100 {
			details = details[:100] + "..."
		}
		pterm.Debug.Printf("Technical details: %s\n", details)
		pterm.Println()
	}
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "the backend"
	}
	return u.Host
}
