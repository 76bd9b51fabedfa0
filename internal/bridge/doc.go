// Package bridge maps a domain.Project onto a replica.Doc and back.
//
// The replicated document is the single source of truth. The Project the
// rest of the application sees is always produced by Extract, never edited in
// place; every edit goes through an Editor method that writes into the
// document inside one transaction.
//
// Layout:
//
//	project/meta            id, name, description, timestamps, temporalEnabled
//	contexts/<id>           one record per bounded context
//	relationships/<id>
//	groups/<id>
//	users/<id>
//	userNeeds/<id>
//	userNeedConnections/<id>
//	needContextConnections/<id>
//	teams/<id>
//	flowStages/<name>       ordered by position on extract
//	keyframes/<id>          ordered by date on extract
//
// Each record field holds the JSON encoding of the matching domain struct
// field, so concurrent edits to different fields of one entity both survive.
package bridge
