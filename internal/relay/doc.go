// Package relay connects a replica.Doc to a relay room over WebSocket.
//
// A Provider dials ws[s]://<host>/parties/<room-kind>/<document-id>, sends
// its full state as sync-step-1, applies the room's sync-step-2 reply and
// from then on exchanges incremental update frames. When the connection
// drops it redials on its own with exponential backoff; callers only learn
// about outcomes through the OnSync and OnClose handlers.
//
// RoomServer is an in-memory room implementation speaking the same protocol,
// used by tests and local development.
package relay
