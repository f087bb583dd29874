/*
Package storage persists the flight ownership ledger used by the bundled local
engine.

The ledger is a single bbolt file (flightwatch.db) with two buckets:

	flights   flight ID -> JSON types.Flight
	workers   worker ID -> JSON {id, last_seen}

Values are JSON so the file can be inspected with the flightwatch flights
command or any bbolt viewer. bbolt serializes writers, and ReassignFlights
runs in one read-write transaction, so a crash mid-recovery leaves either the
old owner or the new one on every flight, never a mix inside one call.

Lookups of missing records return errors wrapping ErrNotFound:

	f, err := store.GetFlight("fl-42")
	if errors.Is(err, storage.ErrNotFound) {
		// ...
	}
*/
package storage
