/*
Package sandbox executes composed preview documents in isolated goja
runtimes.

# Overview

A Runtime wraps a goja VM with a minimal browser surface (window, document
proxy built from the document's markup, element constructors, an offline
fetch backed by the asset registry) and runs the document's inline scripts
under a timeout interrupt. The host and the sandbox never share memory: the
sandbox reports console output, uncaught errors, unhandled rejections and
blocked resources as JSON envelopes over the outbound Bridge, and accepts
exec commands inbound.

# Isolation

Sandboxed code cannot reach the filesystem or the network. Node-style globals
(require, process, module) are removed; timers are inert; fetch dereferences
only asset handles and data URIs and reports anything else as blocked. A
runaway script is interrupted after the configured timeout.

# Pooling

Runtimes are pooled and reset between rebuild passes; the Supervisor holds
the pool, keeps exactly one runtime current, and routes exec commands to it.
*/
package sandbox
