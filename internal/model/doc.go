// Package model defines the data types shared across the download engine:
// jobs, their lifecycle states, progress snapshots, probed metadata and the
// error taxonomy used for retry decisions.
package model
