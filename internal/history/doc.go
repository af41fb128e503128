// Package history implements the notification store: a sorted "visible"
// queue capped by per-app count (the total count bounds only the
// reinsertion of items the per-app cap displaces; a plain insert is never
// refused or trimmed for it), and a newest-first
// "hidden" queue bounded by an estimated memory budget rather than item
// count.
package history
