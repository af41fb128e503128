// Package daemon wires together the D-Bus ingress server, the pipeline
// driver, the history store, the audio gate and configuration hot-reload
// into the running notifd process.
package daemon
