// Package domain defines the project document the editor synchronises:
// bounded contexts, their relationships and groups, users and their needs,
// teams, flow stage markers and temporal keyframes.
//
// A Project is always a projection of the replicated document; nothing in
// this package mutates shared state. Referential integrity between
// collections (a relationship's endpoints, a group's members) is the
// caller's responsibility.
package domain
