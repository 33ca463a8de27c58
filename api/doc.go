// Package api defines the request and response types of the CacheVal HTTP API.
//
// # API Overview
//
// CacheVal provides a RESTful API for:
//   - Answer requests served cache first with miss coalescing
//   - Cache and request statistics
//   - Event log access, including a live WebSocket stream
//   - Run report generation
//   - Health monitoring and metrics
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
