// Package fetch downloads event detail payloads and stores them verbatim.
//
// Each id is an independent unit of work: a failed id is logged and
// recorded in the import error log, and the batch moves on.
package fetch
