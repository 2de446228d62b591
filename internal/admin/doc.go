// Package admin serves the registry over HTTP: a JSON admin API, the routes
// and static assets of active extensions, mount point rendering and tool
// invocation.
package admin
