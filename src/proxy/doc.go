// Package proxy defines and implements AppProxy: the interface between
// Lamarck and an application.
//
// Lamarck communicates with the App through an AppProxy interface. The InmemProxy
// implementation uses native callback handlers to integrate Lamarck as a
// regular Go dependency: the application pushes change-sets and rule proposals
// through the proxy's submit channels, and receives validated blocks, rule
// changes, and node state changes through its ProxyHandler.
package proxy
