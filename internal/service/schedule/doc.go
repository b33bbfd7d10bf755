// Package schedule chooses which external ids the fetch and transform
// stages work on, and splits them into fixed-size chunks.
//
// Only ids seen on the listing within the recency window are eligible.
// Each list is built in two priority tiers and capped at a ceiling so a run
// stays inside the upstream API quota.
package schedule
