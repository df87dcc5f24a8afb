// Package events carries notifications about committed request transitions.
//
// The request engine emits a RequestEvent after each transition is stored.
// Handlers (metrics, audit log) run synchronously in registration order; a
// failing handler is logged and never undoes the transition.
//
// The primary components are:
// - RequestEvent: one committed transition
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
package events
