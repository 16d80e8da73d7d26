// Package cli provides the interactive ielts-wiz command-line client.
//
// The REPL stands in for a UI event loop: it drives the session manager, the
// signup wizard, the profile synchronizer and the progress aggregator of a
// services.Core, and prints their state. A background watcher pings the
// identity gateway and flips the prompt between online and offline.
//
// App.Run blocks until the user exits or input ends.
package cli
