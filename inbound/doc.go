// Package inbound receives commerce event notifications over HTTP, turns
// them into contract commands and reports the outcome.
//
// Notifications carrying an event id are claimed before they run so a
// redelivered event is acknowledged without repeating remote writes, while a
// failed one stays retryable.
package inbound
