// Package providers holds the downstream gateway implementations: rainbow
// for the dataspace connector, tmforum for the commerce APIs, and devkit
// with in-memory fixtures and conformance checks for tests.
package providers
