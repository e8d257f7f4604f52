// File: pluginmgr/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package pluginmgr maps an intention to a live plugin instance. Trusted
// intentions are constructed in-process; the rest come from shared objects
// exporting an api.PluginABI vtable. Instances are cached per intention for
// the life of the manager or until UnloadPlugin.
package pluginmgr
