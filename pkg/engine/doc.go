// Package engine provides Local, a minimal flight-ownership engine on top of
// the bbolt ledger. It implements the recovery coordinator's Engine surface
// and is what the flightwatch binary runs when no external engine is wired in.
package engine
