// Package testutil contains helper utilities used across tests to reduce
// boilerplate when exercising the delegation engine: a notifier that records
// deliveries for assertion and a waiter for asynchronous resolution. These
// helpers are intentionally minimal and not intended for production usage.
package testutil
