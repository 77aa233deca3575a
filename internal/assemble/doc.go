/*
Package assemble builds one composed, self-contained document from an entry
file and the project's asset map.

Assembly inlines store-local stylesheets and scripts referenced by the entry
document, rewrites every remaining src/href/url(...) reference to a
dereferenceable handle (longest path first, so "assets/img.png" is never
clobbered by a bare "img.png"), and appends the sandbox shim before the
closing body tag.

The output is immutable: an edit never mutates an existing document, it
produces a new one with fresh handles. When the entry file is missing or
unusable a minimal built-in fallback document is produced instead, advising
restoration from a prior snapshot.
*/
package assemble
