// Package api exposes analysis tasks over HTTP. Handlers translate requests
// into task submissions, map internal errors to safe status codes and
// messages, and return presenter-shaped results.
package api
