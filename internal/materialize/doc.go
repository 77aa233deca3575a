/*
Package materialize converts virtual file records into dereferenceable asset
handles.

# Classification

A file's content representation is classified once per materialization into a
tagged variant (external handle, wrapped binary marker, data URI, bare base64,
plain text) and dispatched on that tag, rather than re-checking shapes at
every call site. Precedence, first match wins:

 1. external handle
 2. wrapped binary marker (fixed prefix line + data URI)
 3. data URI
 4. base64 heuristic (length >= 100, base64 alphabet only)
 5. plain UTF-8 text

A base64 decode failure degrades to the text path: rendering something always
beats hard failure.

# Handles

Binary and text payloads are registered in the Registry and addressed as
preview://asset/<ulid>, served over HTTP at /api/assets/<ulid>. Data URIs and
external handles pass through as inline handles with no registry entry.
Release is idempotent; a released handle dereferences to a miss.

# Asset maps

BuildAssetMap materializes an entire store snapshot into an AssetMap: every
reference variant (exact path, ./-relative, rooted, basename) maps to the
asset's dereferenceable URL. The map is derived and read-only; building it
twice from the same snapshot yields identical results apart from handle IDs.
*/
package materialize
