// Package httputil provides the JSON response helpers every ops handler
// writes through, so errors share one envelope and are logged one way.
package httputil
