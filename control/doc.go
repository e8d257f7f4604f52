// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, runtime metrics and debug introspection for the
// intention service.
//
// Provides:
//   - YAML configuration with defaults and validation
//   - a Store holding the active snapshot with reload listeners
//   - a file Watcher that reloads the Store on change
//   - prometheus metrics on a private registry
//   - named debug probes
package control
