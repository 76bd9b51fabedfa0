// Package session drives the connection lifecycle of one collaborative
// editing session.
//
// The state machine itself is the pure function Transition. Manager owns the
// live Session (document, provider, status), translates provider callbacks
// into events, enforces the initial-sync timeout and publishes Signals.
//
// States:
//
//	disconnected --connect--> connecting --sync--> connected
//	connected/syncing --close--> reconnecting (attempts+1 <= max)
//	reconnecting --close--> reconnecting | offline (attempts > max)
//	reconnecting/offline/error --sync--> connected
//	connecting --timeout / construction failure--> error
//	any --SetError--> error
//	any --Disconnect--> disconnected
package session
