// Package recovery reassigns the unfinished flights of dead workers.
//
// At startup the Coordinator computes the obsolete workers (known to the
// engine, absent from the cluster, plus this worker itself) and recovers each
// in turn. Only then does it start the membership watch, whose deletions are
// recovered one by one through RecoverSingle.
package recovery
