// Package dbusface implements the wire-facing half of the daemon: the
// org.freedesktop.Notifications session-bus interface and the private
// peer-to-peer applet socket used by the desktop shell's notification
// center. Both are thin adapters that translate D-Bus calls into pipeline
// commands and translate pipeline events back into D-Bus signals; no
// notification state lives here.
package dbusface
